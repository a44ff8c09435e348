package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sofikovaleva/risk-scoring-service/internal/http/middlewarectx"
	"github.com/sofikovaleva/risk-scoring-service/internal/models"
)

// MockService реализует интерфейс submit.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) Submit(ctx context.Context, userUID string, req models.DummyTask) (*models.ScoringTask, error) {
	args := m.Called(ctx, userUID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ScoringTask), args.Error(1)
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

func TestSubmitHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	output := `{"score":2.1,"explanation":"Low risk. No immediate concern detected."}`
	completedTask := &models.ScoringTask{
		ID:         42,
		TaskUUID:   "uuid-1",
		Status:     models.TaskStatusCompleted,
		OutputData: &output,
	}
	pendingTask := &models.ScoringTask{
		ID:       42,
		TaskUUID: "uuid-1",
		Status:   models.TaskStatusPending,
	}

	tests := []struct {
		name           string
		requestBody    interface{}
		userUID        string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "некорректный JSON",
			requestBody:    "not a json",
			userUID:        "uid-1",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"status":"Error","error":"invalid request body"}`,
		},
		{
			name: "ошибка валидации - неподдерживаемый тип модели",
			requestBody: func() models.DummyTask {
				req := validRequest()
				req.ModelType = "deluxe"
				return req
			}(),
			userUID:        "uid-1",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `{"status":"Error","error":"field ModelType has an unsupported value"}`,
		},
		{
			name:           "нет авторизации",
			requestBody:    validRequest(),
			userUID:        "",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"status":"Error","error":"unauthorized"}`,
		},
		{
			name:        "недостаточно кредитов",
			requestBody: validRequest(),
			userUID:     "uid-1",
			setupMock: func(m *MockService) {
				m.On("Submit", mock.Anything, "uid-1", mock.Anything).
					Return(nil, models.ErrInsufficientFunds)
			},
			expectedStatus: http.StatusPaymentRequired,
			expectedBody:   `{"status":"Error","error":"insufficient funds"}`,
		},
		{
			name:        "ошибка сервиса",
			requestBody: validRequest(),
			userUID:     "uid-1",
			setupMock: func(m *MockService) {
				m.On("Submit", mock.Anything, "uid-1", mock.Anything).
					Return(nil, errors.New("broker down"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"status":"Error","error":"could not submit task"}`,
		},
		{
			name:        "результат готов сразу",
			requestBody: validRequest(),
			userUID:     "uid-1",
			setupMock: func(m *MockService) {
				m.On("Submit", mock.Anything, "uid-1", mock.Anything).
					Return(completedTask, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"status":"OK","data":{"task_id":42,"task_uuid":"uuid-1","status":"COMPLETED","result":"Low risk. No immediate concern detected."}}`,
		},
		{
			name:        "воркер не успел",
			requestBody: validRequest(),
			userUID:     "uid-1",
			setupMock: func(m *MockService) {
				m.On("Submit", mock.Anything, "uid-1", mock.Anything).
					Return(pendingTask, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"status":"OK","data":{"task_id":42,"task_uuid":"uuid-1","status":"PENDING","result":"Timeout: task not completed"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSvc := new(MockService)
			tt.setupMock(mockSvc)

			handler := New(logger, mockSvc)

			var body []byte
			var err error
			if str, ok := tt.requestBody.(string); ok {
				body = []byte(str)
			} else {
				body, err = json.Marshal(tt.requestBody)
				require.NoError(t, err)
			}

			req := httptest.NewRequest(http.MethodPost, "/api/v1/predictions", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")

			ctx := context.WithValue(req.Context(), middlewarectx.UserUID, tt.userUID)
			ctx = context.WithValue(ctx, middleware.RequestIDKey, "req-id")
			req = req.WithContext(ctx)

			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
			mockSvc.AssertExpectations(t)
		})
	}
}
