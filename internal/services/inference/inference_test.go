package inference

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sofikovaleva/risk-scoring-service/internal/models"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) CreateTask(ctx context.Context, task models.ScoringTask) (int, error) {
	args := m.Called(ctx, task)
	return args.Int(0), args.Error(1)
}

func (m *RepoMock) UpdateTaskOutput(ctx context.Context, taskID int, output string) (bool, error) {
	args := m.Called(ctx, taskID, output)
	return args.Bool(0), args.Error(1)
}

func (m *RepoMock) GetTask(ctx context.Context, taskID int) (*models.ScoringTask, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ScoringTask), args.Error(1)
}

func (m *RepoMock) ListTasksByUser(ctx context.Context, userUID string) ([]*models.ScoringTask, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ScoringTask), args.Error(1)
}

type ExecutorMock struct{ mock.Mock }

func (m *ExecutorMock) Enqueue(ctx context.Context, msg models.TaskMessage) error {
	return m.Called(ctx, msg).Error(0)
}

func (m *ExecutorMock) AwaitResult(ctx context.Context, taskUUID string, timeout time.Duration) (*models.ScoringResult, error) {
	args := m.Called(ctx, taskUUID, timeout)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ScoringResult), args.Error(1)
}

type BillingMock struct{ mock.Mock }

func (m *BillingMock) Freeze(ctx context.Context, userUID, modelType string, taskID *int) (*models.UserCredits, error) {
	args := m.Called(ctx, userUID, modelType, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserCredits), args.Error(1)
}

type CacheMock struct{ mock.Mock }

func (m *CacheMock) Get(key string, result any) (bool, error) {
	args := m.Called(key, result)
	return args.Bool(0), args.Error(1)
}
func (m *CacheMock) Set(key string, value any, expiration time.Duration) error {
	return m.Called(key, value, expiration).Error(0)
}
func (m *CacheMock) Invalidate(key string) error {
	return m.Called(key).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func validRequest() models.DummyTask {
	return models.DummyTask{
		ModelType: "simple",
		Input: models.ScoringInput{
			Age:                       30,
			Income:                    60000,
			EmploymentStatus:          "Employed",
			EducationLevel:            "Bachelor's Degree",
			MaritalStatus:             "Married",
			FamilyHistoryOfDepression: "No",
			HistoryOfMentalIllness:    "No",
			ChronicMedicalConditions:  "No",
			SmokingStatus:             "Never",
			AlcoholConsumption:        "None",
			PhysicalActivityLevel:     "Active",
			DietaryHabits:             "Healthy",
			SleepPatterns:             "Good",
		},
	}
}

func TestService_Submit(t *testing.T) {
	result := &models.ScoringResult{Score: 2.1, Explanation: "Low risk. No immediate concern detected."}

	tests := []struct {
		name       string
		setupMocks func(r *RepoMock, e *ExecutorMock, b *BillingMock, c *CacheMock)
		wantStatus string
		wantErr    error
	}{
		{
			name: "result ready within wait window",
			setupMocks: func(r *RepoMock, e *ExecutorMock, b *BillingMock, c *CacheMock) {
				b.On("Freeze", mock.Anything, "uid-1", "simple", (*int)(nil)).
					Return(&models.UserCredits{UserUID: "uid-1", AvailableCredits: 9}, nil).Once()
				e.On("Enqueue", mock.Anything, mock.MatchedBy(func(msg models.TaskMessage) bool {
					return msg.UserUID == "uid-1" && msg.ModelType == "simple" && msg.TaskUUID != ""
				})).Return(nil).Once()
				r.On("CreateTask", mock.Anything, mock.MatchedBy(func(task models.ScoringTask) bool {
					return task.Status == models.TaskStatusPending && task.UserUID == "uid-1"
				})).Return(42, nil).Once()
				c.On("Invalidate", "user:history:uid-1").Return(nil).Once()
				e.On("AwaitResult", mock.Anything, mock.Anything, resultWaitTimeout).
					Return(result, nil).Once()
				r.On("UpdateTaskOutput", mock.Anything, 42, mock.Anything).Return(true, nil).Once()
			},
			wantStatus: models.TaskStatusCompleted,
		},
		{
			name: "worker misses deadline",
			setupMocks: func(r *RepoMock, e *ExecutorMock, b *BillingMock, c *CacheMock) {
				b.On("Freeze", mock.Anything, "uid-1", "simple", (*int)(nil)).
					Return(&models.UserCredits{UserUID: "uid-1", AvailableCredits: 9}, nil).Once()
				e.On("Enqueue", mock.Anything, mock.Anything).Return(nil).Once()
				r.On("CreateTask", mock.Anything, mock.Anything).Return(42, nil).Once()
				c.On("Invalidate", "user:history:uid-1").Return(nil).Once()
				e.On("AwaitResult", mock.Anything, mock.Anything, resultWaitTimeout).
					Return(nil, models.ErrResultNotReady).Once()
			},
			wantStatus: models.TaskStatusPending,
		},
		{
			name: "insufficient funds blocks enqueue",
			setupMocks: func(_ *RepoMock, _ *ExecutorMock, b *BillingMock, _ *CacheMock) {
				b.On("Freeze", mock.Anything, "uid-1", "simple", (*int)(nil)).
					Return(nil, models.ErrInsufficientFunds).Once()
			},
			wantErr: models.ErrInsufficientFunds,
		},
		{
			name: "enqueue failure",
			setupMocks: func(_ *RepoMock, e *ExecutorMock, b *BillingMock, _ *CacheMock) {
				b.On("Freeze", mock.Anything, "uid-1", "simple", (*int)(nil)).
					Return(&models.UserCredits{UserUID: "uid-1", AvailableCredits: 9}, nil).Once()
				e.On("Enqueue", mock.Anything, mock.Anything).
					Return(errors.New("broker down")).Once()
			},
			wantErr: errors.New("broker down"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			exec := new(ExecutorMock)
			bill := new(BillingMock)
			c := new(CacheMock)
			tt.setupMocks(repo, exec, bill, c)
			svc := New(repo, exec, bill, c, newNoopLogger())

			task, err := svc.Submit(context.Background(), "uid-1", validRequest())
			if tt.wantErr != nil {
				require.Error(t, err)
				if errors.Is(tt.wantErr, models.ErrInsufficientFunds) {
					assert.ErrorIs(t, err, models.ErrInsufficientFunds)
				}
				return
			}
			require.NoError(t, err)
			require.NotNil(t, task)
			assert.Equal(t, tt.wantStatus, task.Status)
			assert.Equal(t, 42, task.ID)
			repo.AssertExpectations(t)
			exec.AssertExpectations(t)
			bill.AssertExpectations(t)
			c.AssertExpectations(t)
		})
	}
}

func TestService_History(t *testing.T) {
	input := validRequest().Input
	inputData, err := json.Marshal(input)
	require.NoError(t, err)
	output := `{"score":4.2,"explanation":"Moderate risk"}`

	repo := new(RepoMock)
	exec := new(ExecutorMock)
	bill := new(BillingMock)
	c := new(CacheMock)

	c.On("Get", "user:history:uid-1", mock.Anything).Return(false, nil).Once()
	repo.On("ListTasksByUser", mock.Anything, "uid-1").Return([]*models.ScoringTask{
		{ID: 1, ModelType: "advanced", InputData: string(inputData), OutputData: &output, Status: models.TaskStatusCompleted},
		{ID: 2, ModelType: "simple", InputData: string(inputData), Status: models.TaskStatusPending},
	}, nil).Once()
	c.On("Set", "user:history:uid-1", mock.Anything, time.Duration(0)).Return(nil).Once()

	svc := New(repo, exec, bill, c, newNoopLogger())
	items, err := svc.History(context.Background(), "uid-1")
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "Moderate risk", items[0].Result)
	require.NotNil(t, items[0].Score)
	assert.InDelta(t, 4.2, *items[0].Score, 0.001)
	assert.Equal(t, input, items[0].Input)

	assert.Equal(t, "Timeout: task not completed", items[1].Result)
	assert.Nil(t, items[1].Score)
	repo.AssertExpectations(t)
	c.AssertExpectations(t)
}

func TestResultMessage(t *testing.T) {
	corrupted := "{not json"
	valid := `{"score":1.0,"explanation":"Low risk"}`

	tests := []struct {
		name   string
		status string
		output *string
		want   string
	}{
		{"pending task", models.TaskStatusPending, nil, "Timeout: task not completed"},
		{"completed without output", models.TaskStatusCompleted, nil, "Corrupted output"},
		{"completed with corrupted output", models.TaskStatusCompleted, &corrupted, "Corrupted output"},
		{"completed with result", models.TaskStatusCompleted, &valid, "Low risk"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResultMessage(tt.status, tt.output))
		})
	}
}
