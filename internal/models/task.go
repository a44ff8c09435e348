// Package models содержит доменные структуры задач скоринга,
// а также вспомогательные типы для приёма данных из JSON-запросов.
package models

import "time"

// Статусы задачи скоринга.
const (
	TaskStatusPending   = "PENDING"
	TaskStatusCompleted = "COMPLETED"
)

// ScoringTask представляет задачу вычисления риска,
// используемую в бизнес-логике и хранилище.
// OutputData заполняется один раз при завершении задачи.
type ScoringTask struct {
	ID         int        // Идентификатор задачи
	UserUID    string     // Пользователь, поставивший задачу
	ModelType  string     // Тип модели: simple, advanced или premium
	InputData  string     // Сериализованная анкета
	OutputData *string    // Сериализованный результат, nil до завершения
	Status     string     // PENDING или COMPLETED
	TaskUUID   string     // Идентификатор задания в очереди
	CreatedAt  time.Time  // Время постановки
	FinishedAt *time.Time // Время завершения, nil для PENDING
}

// ScoringInput — анкета пользователя для модели оценки риска.
// Значения полей валидируются до передачи в бизнес-логику.
type ScoringInput struct {
	Age                       int    `json:"age" validate:"required,gte=18,lte=100"`
	Income                    int    `json:"income" validate:"gte=0"`
	EmploymentStatus          string `json:"employment_status" validate:"required,oneof=Unemployed Employed"`
	EducationLevel            string `json:"education_level" validate:"required"`
	MaritalStatus             string `json:"marital_status" validate:"required,oneof=Single Divorced Widowed Separated Married 'In a relationship'"`
	NumberOfChildren          int    `json:"number_of_children" validate:"gte=0"`
	FamilyHistoryOfDepression string `json:"family_history_of_depression" validate:"required,oneof=Yes No"`
	HistoryOfMentalIllness    string `json:"history_of_mental_illness" validate:"required,oneof=Yes No"`
	ChronicMedicalConditions  string `json:"chronic_medical_conditions" validate:"required,oneof=Yes No"`
	SmokingStatus             string `json:"smoking_status" validate:"required,oneof=Never Former Current"`
	AlcoholConsumption        string `json:"alcohol_consumption" validate:"required,oneof=None Moderate High"`
	PhysicalActivityLevel     string `json:"physical_activity_level" validate:"required,oneof=Low Moderate Active"`
	DietaryHabits             string `json:"dietary_habits" validate:"required,oneof=Poor Moderate Healthy"`
	SleepPatterns             string `json:"sleep_patterns" validate:"required,oneof=Poor Fair Good"`
}

// DummyTask используется для приёма запроса на постановку задачи из JSON,
// прежде чем конвертировать его в ScoringTask.
type DummyTask struct {
	ModelType string       `json:"model_type" validate:"required,oneof=simple advanced premium"`
	Input     ScoringInput `json:"input_data" validate:"required"`
}

// ScoringResult — результат работы модели.
type ScoringResult struct {
	Score       float64 `json:"score"`
	Explanation string  `json:"explanation"`
}

// TaskMessage — сообщение очереди задач между API и воркером.
type TaskMessage struct {
	TaskUUID  string       `json:"task_uuid"`
	UserUID   string       `json:"user_uid"`
	ModelType string       `json:"model_type"`
	Input     ScoringInput `json:"input_data"`
}

// TaskHistoryItem — элемент истории задач пользователя,
// проекция задачи для выдачи и кеша.
type TaskHistoryItem struct {
	ModelType string       `json:"model_type"`
	Input     ScoringInput `json:"input_data"`
	CreatedAt time.Time    `json:"created_at"`
	Score     *float64     `json:"score,omitempty"`
	Result    string       `json:"result"`
}
