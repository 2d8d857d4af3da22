package models

const (
	// DefaultMinNameLength минимальная длина имени и фамилии клиента
	DefaultMinNameLength = 2

	// DefaultPhonePattern допустимый формат телефона: необязательный "+", затем цифры,
	// пробелы, дефисы и скобки, всего от 6 до 20 символов
	DefaultPhonePattern = `^\+?[0-9][0-9 ()\-]{5,19}$`

	// DefaultMaxBookingDays горизонт бронирования в днях
	DefaultMaxBookingDays = 730

	// DefaultCalendarDays длина календаря по умолчанию
	DefaultCalendarDays = 31

	// MaxCalendarDays верхняя граница запроса календаря
	MaxCalendarDays = 366

	// DefaultIntakeLimit количество попыток создания брони в окне
	DefaultIntakeLimit = 10

	// DefaultIntakeWindow окно ограничения попыток в секундах
	DefaultIntakeWindow = 60

	// HallCacheTTL время жизни кэша залов в Redis в секундах
	HallCacheTTL = 10 * 60

	// WorkerQueueSize размер очереди воркера
	WorkerQueueSize = 1000
)
