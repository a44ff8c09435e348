// Package metrics содержит прометеевские метрики сервиса скоринга.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QuestionnaireAge — распределение возраста в принятых анкетах.
	QuestionnaireAge = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "scoring_questionnaire_age_years",
		Help:    "Age reported in accepted scoring questionnaires.",
		Buckets: prometheus.LinearBuckets(18, 8, 10),
	})

	// ScoringDuration — время вычисления оценки воркером по типу модели.
	ScoringDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scoring_task_duration_seconds",
		Help:    "Time spent computing a risk score, by model type.",
		Buckets: prometheus.DefBuckets,
	}, []string{"model_type"})

	// TasksSubmitted — число принятых задач скоринга по типу модели.
	TasksSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scoring_tasks_submitted_total",
		Help: "Scoring tasks accepted for processing, by model type.",
	}, []string{"model_type"})

	// InsufficientFunds — число отказов из-за нехватки кредитов.
	InsufficientFunds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scoring_insufficient_funds_total",
		Help: "Scoring submissions rejected for insufficient credits.",
	})
)
