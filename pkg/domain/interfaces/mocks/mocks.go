// Package mocks holds function-field test doubles for the domain interfaces.
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/bssprx/data-platform-containers/pkg/domain/interfaces"
	"github.com/bssprx/data-platform-containers/pkg/domain/model"
)

var (
	_ interfaces.Executor       = &ExecutorMock{}
	_ interfaces.UpstreamClient = &UpstreamClientMock{}
	_ interfaces.UserStore      = &UserStoreMock{}
	_ interfaces.TokenIssuer    = &TokenIssuerMock{}
	_ interfaces.AuthUseCase    = &AuthUseCaseMock{}
	_ interfaces.ReportSink     = &ReportSinkMock{}
)

// ExecutorMock records every command. Nil funcs succeed with empty output.
type ExecutorMock struct {
	RunFunc     func(ctx context.Context, cmd *model.Command) error
	CaptureFunc func(ctx context.Context, cmd *model.Command) (*model.CommandOutput, error)

	mu       sync.Mutex
	commands []*model.Command
}

func (m *ExecutorMock) record(cmd *model.Command) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = append(m.commands, cmd)
}

// Commands returns the commands passed to Run and Capture in call order
func (m *ExecutorMock) Commands() []*model.Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*model.Command(nil), m.commands...)
}

func (m *ExecutorMock) Run(ctx context.Context, cmd *model.Command) error {
	m.record(cmd)
	if m.RunFunc == nil {
		return nil
	}
	return m.RunFunc(ctx, cmd)
}

func (m *ExecutorMock) Capture(ctx context.Context, cmd *model.Command) (*model.CommandOutput, error) {
	m.record(cmd)
	if m.CaptureFunc == nil {
		return &model.CommandOutput{}, nil
	}
	return m.CaptureFunc(ctx, cmd)
}

type UpstreamClientMock struct {
	GetJSONFunc func(ctx context.Context, url string, timeout time.Duration, out any) error
	GetTextFunc func(ctx context.Context, url string, timeout time.Duration) (string, error)
	HeadFunc    func(ctx context.Context, url string, timeout time.Duration) (int, error)
}

func (m *UpstreamClientMock) GetJSON(ctx context.Context, url string, timeout time.Duration, out any) error {
	if m.GetJSONFunc == nil {
		panic("UpstreamClientMock.GetJSONFunc: method is nil but UpstreamClient.GetJSON was just called")
	}
	return m.GetJSONFunc(ctx, url, timeout, out)
}

func (m *UpstreamClientMock) GetText(ctx context.Context, url string, timeout time.Duration) (string, error) {
	if m.GetTextFunc == nil {
		panic("UpstreamClientMock.GetTextFunc: method is nil but UpstreamClient.GetText was just called")
	}
	return m.GetTextFunc(ctx, url, timeout)
}

func (m *UpstreamClientMock) Head(ctx context.Context, url string, timeout time.Duration) (int, error) {
	if m.HeadFunc == nil {
		panic("UpstreamClientMock.HeadFunc: method is nil but UpstreamClient.Head was just called")
	}
	return m.HeadFunc(ctx, url, timeout)
}

// UserStoreMock optionally implements interfaces.Rollbacker through RollbackFunc
type UserStoreMock struct {
	FindUserByUsernameFunc func(ctx context.Context, username string) (*model.User, error)
	FindUserByEmailFunc    func(ctx context.Context, email string) (*model.User, error)
	FindRoleFunc           func(ctx context.Context, name string) (*model.Role, error)
	AddUserFunc            func(ctx context.Context, user *model.User) (*model.User, error)
	RecordLoginFunc        func(ctx context.Context, userID string, at time.Time) error
	RollbackFunc           func(ctx context.Context) error
}

func (m *UserStoreMock) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	if m.FindUserByUsernameFunc == nil {
		return nil, nil
	}
	return m.FindUserByUsernameFunc(ctx, username)
}

func (m *UserStoreMock) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.FindUserByEmailFunc == nil {
		return nil, nil
	}
	return m.FindUserByEmailFunc(ctx, email)
}

func (m *UserStoreMock) FindRole(ctx context.Context, name string) (*model.Role, error) {
	if m.FindRoleFunc == nil {
		return nil, nil
	}
	return m.FindRoleFunc(ctx, name)
}

func (m *UserStoreMock) AddUser(ctx context.Context, user *model.User) (*model.User, error) {
	if m.AddUserFunc == nil {
		panic("UserStoreMock.AddUserFunc: method is nil but UserStore.AddUser was just called")
	}
	return m.AddUserFunc(ctx, user)
}

func (m *UserStoreMock) RecordLogin(ctx context.Context, userID string, at time.Time) error {
	if m.RecordLoginFunc == nil {
		return nil
	}
	return m.RecordLoginFunc(ctx, userID, at)
}

func (m *UserStoreMock) Rollback(ctx context.Context) error {
	if m.RollbackFunc == nil {
		return nil
	}
	return m.RollbackFunc(ctx)
}

type TokenIssuerMock struct {
	IssueFunc func(ctx context.Context, user *model.User, ttl time.Duration) (string, error)
}

func (m *TokenIssuerMock) Issue(ctx context.Context, user *model.User, ttl time.Duration) (string, error) {
	if m.IssueFunc == nil {
		panic("TokenIssuerMock.IssueFunc: method is nil but TokenIssuer.Issue was just called")
	}
	return m.IssueFunc(ctx, user, ttl)
}

type AuthUseCaseMock struct {
	AuthorizeFunc     func(ctx context.Context, info *model.UserInfo) (*model.User, error)
	PasswordLoginFunc func(ctx context.Context, username, password string) (*model.User, error)
	IssueTokenFunc    func(ctx context.Context, user *model.User, ttl time.Duration) (string, error)
}

func (m *AuthUseCaseMock) Authorize(ctx context.Context, info *model.UserInfo) (*model.User, error) {
	if m.AuthorizeFunc == nil {
		panic("AuthUseCaseMock.AuthorizeFunc: method is nil but AuthUseCase.Authorize was just called")
	}
	return m.AuthorizeFunc(ctx, info)
}

func (m *AuthUseCaseMock) PasswordLogin(ctx context.Context, username, password string) (*model.User, error) {
	if m.PasswordLoginFunc == nil {
		panic("AuthUseCaseMock.PasswordLoginFunc: method is nil but AuthUseCase.PasswordLogin was just called")
	}
	return m.PasswordLoginFunc(ctx, username, password)
}

func (m *AuthUseCaseMock) IssueToken(ctx context.Context, user *model.User, ttl time.Duration) (string, error) {
	if m.IssueTokenFunc == nil {
		panic("AuthUseCaseMock.IssueTokenFunc: method is nil but AuthUseCase.IssueToken was just called")
	}
	return m.IssueTokenFunc(ctx, user, ttl)
}

// ReportSinkMock keeps every published report
type ReportSinkMock struct {
	PublishFunc func(ctx context.Context, report *model.UpstreamReport) error

	mu      sync.Mutex
	Reports []*model.UpstreamReport
}

func (m *ReportSinkMock) Publish(ctx context.Context, report *model.UpstreamReport) error {
	m.mu.Lock()
	m.Reports = append(m.Reports, report)
	m.mu.Unlock()
	if m.PublishFunc == nil {
		return nil
	}
	return m.PublishFunc(ctx, report)
}
