package models

import "time"

const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"
)

const (
	// CheckInLeadTime сколько времени до начала брони открыто окно чекина
	CheckInLeadTime = time.Hour

	// DefaultSlotLength длина одного слота в расписании
	DefaultSlotLength = time.Hour

	// MaxBulkRangeDays максимальная длина диапазона для пакетного создания окон
	MaxBulkRangeDays = 30

	// DefaultTimezone канонический часовой пояс для окон доступности
	DefaultTimezone = "Europe/Belgrade"

	// SlotCacheTTL время жизни кэша свободных слотов
	SlotCacheTTL = 30 // секунд

	// RateLimitRequests количество заявок на бронирование в окне
	RateLimitRequests = 10

	// RateLimitWindow окно ограничения частоты заявок
	RateLimitWindow = 60 // 1 минута в секундах

	// WorkerQueueSize размер очереди воркера
	WorkerQueueSize = 128
)
