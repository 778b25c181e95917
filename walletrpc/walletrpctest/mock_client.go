// Hand-maintained in the shape of MockGen output.
// Source: github.com/athanor-escrow/escrowd/walletrpc (interfaces: WalletClient)

package walletrpctest

import (
	"context"
	reflect "reflect"

	gomock "github.com/golang/mock/gomock"

	"github.com/athanor-escrow/escrowd/walletrpc"
)

// MockWalletClient is a mock of the WalletClient interface, hand-maintained
// in the shape mockgen would emit (the teacher generates
// offers.MockDatabase the same way for protocol/xmrmaker's instance_test.go).
type MockWalletClient struct {
	ctrl     *gomock.Controller
	recorder *MockWalletClientMockRecorder
}

// MockWalletClientMockRecorder is the mock recorder for MockWalletClient.
type MockWalletClientMockRecorder struct {
	mock *MockWalletClient
}

// NewMockWalletClient creates a new mock instance.
func NewMockWalletClient(ctrl *gomock.Controller) *MockWalletClient {
	mock := &MockWalletClient{ctrl: ctrl}
	mock.recorder = &MockWalletClientMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockWalletClient) EXPECT() *MockWalletClientMockRecorder {
	return m.recorder
}

func (m *MockWalletClient) URL() string {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "URL")
	ret0, _ := ret[0].(string)
	return ret0
}

func (mr *MockWalletClientMockRecorder) URL() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "URL", reflect.TypeOf((*MockWalletClient)(nil).URL))
}

func (m *MockWalletClient) CreateWallet(ctx context.Context, filename, password string) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "CreateWallet", ctx, filename, password)
	ret0, _ := ret[0].(error)
	return ret0
}

func (mr *MockWalletClientMockRecorder) CreateWallet(ctx, filename, password interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "CreateWallet", reflect.TypeOf((*MockWalletClient)(nil).CreateWallet), ctx, filename, password)
}

func (m *MockWalletClient) OpenWallet(ctx context.Context, filename, password string) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "OpenWallet", ctx, filename, password)
	ret0, _ := ret[0].(error)
	return ret0
}

func (mr *MockWalletClientMockRecorder) OpenWallet(ctx, filename, password interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "OpenWallet", reflect.TypeOf((*MockWalletClient)(nil).OpenWallet), ctx, filename, password)
}

func (m *MockWalletClient) CloseWallet(ctx context.Context) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "CloseWallet", ctx)
	ret0, _ := ret[0].(error)
	return ret0
}

func (mr *MockWalletClientMockRecorder) CloseWallet(ctx interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "CloseWallet", reflect.TypeOf((*MockWalletClient)(nil).CloseWallet), ctx)
}

func (m *MockWalletClient) SetAttribute(ctx context.Context, key, value string) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "SetAttribute", ctx, key, value)
	ret0, _ := ret[0].(error)
	return ret0
}

func (mr *MockWalletClientMockRecorder) SetAttribute(ctx, key, value interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SetAttribute", reflect.TypeOf((*MockWalletClient)(nil).SetAttribute), ctx, key, value)
}

func (m *MockWalletClient) GetAttribute(ctx context.Context, key string) (string, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetAttribute", ctx, key)
	ret0, _ := ret[0].(string)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

func (mr *MockWalletClientMockRecorder) GetAttribute(ctx, key interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetAttribute", reflect.TypeOf((*MockWalletClient)(nil).GetAttribute), ctx, key)
}

func (m *MockWalletClient) GetVersion(ctx context.Context) (uint64, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetVersion", ctx)
	ret0, _ := ret[0].(uint64)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

func (mr *MockWalletClientMockRecorder) GetVersion(ctx interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetVersion", reflect.TypeOf((*MockWalletClient)(nil).GetVersion), ctx)
}

func (m *MockWalletClient) PrepareMultisig(ctx context.Context) (string, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "PrepareMultisig", ctx)
	ret0, _ := ret[0].(string)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

func (mr *MockWalletClientMockRecorder) PrepareMultisig(ctx interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "PrepareMultisig", reflect.TypeOf((*MockWalletClient)(nil).PrepareMultisig), ctx)
}

func (m *MockWalletClient) MakeMultisig(ctx context.Context, otherInfos [2]string, password string) (*walletrpc.MakeMultisigResult, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "MakeMultisig", ctx, otherInfos, password)
	ret0, _ := ret[0].(*walletrpc.MakeMultisigResult)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

func (mr *MockWalletClientMockRecorder) MakeMultisig(ctx, otherInfos, password interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "MakeMultisig", reflect.TypeOf((*MockWalletClient)(nil).MakeMultisig), ctx, otherInfos, password)
}

func (m *MockWalletClient) ExchangeMultisigKeys(ctx context.Context, otherRound1Infos [2]string, password string) (*walletrpc.MakeMultisigResult, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ExchangeMultisigKeys", ctx, otherRound1Infos, password)
	ret0, _ := ret[0].(*walletrpc.MakeMultisigResult)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

func (mr *MockWalletClientMockRecorder) ExchangeMultisigKeys(ctx, otherRound1Infos, password interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ExchangeMultisigKeys", reflect.TypeOf((*MockWalletClient)(nil).ExchangeMultisigKeys), ctx, otherRound1Infos, password)
}

func (m *MockWalletClient) ExportMultisigInfo(ctx context.Context) (string, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ExportMultisigInfo", ctx)
	ret0, _ := ret[0].(string)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

func (mr *MockWalletClientMockRecorder) ExportMultisigInfo(ctx interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ExportMultisigInfo", reflect.TypeOf((*MockWalletClient)(nil).ExportMultisigInfo), ctx)
}

func (m *MockWalletClient) ImportMultisigInfo(ctx context.Context, otherInfos [2]string) (uint64, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ImportMultisigInfo", ctx, otherInfos)
	ret0, _ := ret[0].(uint64)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

func (mr *MockWalletClientMockRecorder) ImportMultisigInfo(ctx, otherInfos interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ImportMultisigInfo", reflect.TypeOf((*MockWalletClient)(nil).ImportMultisigInfo), ctx, otherInfos)
}

func (m *MockWalletClient) GetBalance(ctx context.Context) (*walletrpc.Balance, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetBalance", ctx)
	ret0, _ := ret[0].(*walletrpc.Balance)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

func (mr *MockWalletClientMockRecorder) GetBalance(ctx interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetBalance", reflect.TypeOf((*MockWalletClient)(nil).GetBalance), ctx)
}

func (m *MockWalletClient) TransferMultisig(ctx context.Context, destinations []walletrpc.Destination) (string, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "TransferMultisig", ctx, destinations)
	ret0, _ := ret[0].(string)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

func (mr *MockWalletClientMockRecorder) TransferMultisig(ctx, destinations interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "TransferMultisig", reflect.TypeOf((*MockWalletClient)(nil).TransferMultisig), ctx, destinations)
}

func (m *MockWalletClient) SignMultisig(ctx context.Context, txDataHex string) (*walletrpc.SignMultisigResult, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "SignMultisig", ctx, txDataHex)
	ret0, _ := ret[0].(*walletrpc.SignMultisigResult)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

func (mr *MockWalletClientMockRecorder) SignMultisig(ctx, txDataHex interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SignMultisig", reflect.TypeOf((*MockWalletClient)(nil).SignMultisig), ctx, txDataHex)
}

func (m *MockWalletClient) SubmitMultisig(ctx context.Context, txDataHex string) ([]string, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "SubmitMultisig", ctx, txDataHex)
	ret0, _ := ret[0].([]string)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

func (mr *MockWalletClientMockRecorder) SubmitMultisig(ctx, txDataHex interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SubmitMultisig", reflect.TypeOf((*MockWalletClient)(nil).SubmitMultisig), ctx, txDataHex)
}

var _ walletrpc.WalletClient = (*MockWalletClient)(nil)
