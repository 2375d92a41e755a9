// Package spitest provides a scripted backend for tests.
package spitest

import (
	"context"
	"sync"

	"xs2a/internal/domain"
	"xs2a/internal/spi"
)

// Operation names used by Calls.
const (
	OpAuthorisePsu           = "AuthorisePsu"
	OpRequestScaMethods      = "RequestAvailableScaMethods"
	OpRequestCode            = "RequestAuthorisationCode"
	OpStartDecoupled         = "StartScaDecoupled"
	OpVerifyAndExecute       = "VerifyScaAuthorisationAndExecute"
	OpExecuteWithoutSca      = "ExecuteWithoutSca"
	OpCheckConfirmationCode  = "CheckConfirmationCode"
	OpNotifyConfirmationCode = "NotifyConfirmationCodeValidation"
)

// Fake returns the scripted response for each operation and counts calls.
// Unscripted operations succeed with a zero payload.
type Fake struct {
	AuthorisePsuResp      spi.Response[spi.PsuAuthorisationResult]
	ScaMethodsResp        spi.Response[spi.AvailableScaMethods]
	AuthorisationCodeResp spi.Response[spi.AuthorisationCodeResult]
	DecoupledResp         spi.Response[spi.DecoupledScaResult]
	VerifyResp            spi.Response[spi.ExecutionResult]
	ExecuteResp           spi.Response[spi.ExecutionResult]
	CheckCodeResp         spi.Response[spi.ConfirmationCodeResult]
	NotifyResp            spi.Response[spi.ConfirmationCodeResult]

	mu       sync.Mutex
	calls    map[string]int
	password string
	methodID string
	code     string
	verdicts []bool
}

var _ spi.AuthorisationSpi = (*Fake)(nil)

// New returns a fake whose PSU authorisation succeeds.
func New() *Fake {
	return &Fake{
		AuthorisePsuResp: spi.OK(spi.PsuAuthorisationResult{Status: spi.AuthorisationSuccess}),
	}
}

func (f *Fake) record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[op]++
}

// Calls returns how often op was invoked.
func (f *Fake) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// TotalCalls returns the number of backend calls of any kind.
func (f *Fake) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// Password returns the last password sent to AuthorisePsu.
func (f *Fake) Password() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.password
}

// MethodID returns the last method sent to RequestAuthorisationCode or StartScaDecoupled.
func (f *Fake) MethodID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.methodID
}

// Code returns the last confirmation code or authentication data received.
func (f *Fake) Code() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.code
}

// Verdicts returns every value sent to NotifyConfirmationCodeValidation.
func (f *Fake) Verdicts() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.verdicts...)
}

func (f *Fake) AuthorisePsu(_ context.Context, _ spi.ContextData, _ domain.PsuIdData, password string, _ *domain.BusinessObject) spi.Response[spi.PsuAuthorisationResult] {
	f.record(OpAuthorisePsu)
	f.mu.Lock()
	f.password = password
	f.mu.Unlock()
	return f.AuthorisePsuResp
}

func (f *Fake) RequestAvailableScaMethods(context.Context, spi.ContextData, *domain.BusinessObject) spi.Response[spi.AvailableScaMethods] {
	f.record(OpRequestScaMethods)
	return f.ScaMethodsResp
}

func (f *Fake) RequestAuthorisationCode(_ context.Context, _ spi.ContextData, methodID string, _ *domain.BusinessObject) spi.Response[spi.AuthorisationCodeResult] {
	f.record(OpRequestCode)
	f.mu.Lock()
	f.methodID = methodID
	f.mu.Unlock()
	return f.AuthorisationCodeResp
}

func (f *Fake) StartScaDecoupled(_ context.Context, _ spi.ContextData, _ string, methodID string, _ *domain.BusinessObject) spi.Response[spi.DecoupledScaResult] {
	f.record(OpStartDecoupled)
	f.mu.Lock()
	f.methodID = methodID
	f.mu.Unlock()
	return f.DecoupledResp
}

func (f *Fake) VerifyScaAuthorisationAndExecute(_ context.Context, _ spi.ContextData, _ string, data string, _ *domain.BusinessObject) spi.Response[spi.ExecutionResult] {
	f.record(OpVerifyAndExecute)
	f.mu.Lock()
	f.code = data
	f.mu.Unlock()
	return f.VerifyResp
}

func (f *Fake) ExecuteWithoutSca(context.Context, spi.ContextData, *domain.BusinessObject) spi.Response[spi.ExecutionResult] {
	f.record(OpExecuteWithoutSca)
	return f.ExecuteResp
}

func (f *Fake) CheckConfirmationCode(_ context.Context, _ spi.ContextData, req spi.CheckConfirmationCodeRequest, _ *domain.BusinessObject) spi.Response[spi.ConfirmationCodeResult] {
	f.record(OpCheckConfirmationCode)
	f.mu.Lock()
	f.code = req.ConfirmationCode
	f.mu.Unlock()
	return f.CheckCodeResp
}

func (f *Fake) NotifyConfirmationCodeValidation(_ context.Context, _ spi.ContextData, valid bool, _ *domain.BusinessObject) spi.Response[spi.ConfirmationCodeResult] {
	f.record(OpNotifyConfirmationCode)
	f.mu.Lock()
	f.verdicts = append(f.verdicts, valid)
	f.mu.Unlock()
	return f.NotifyResp
}
