package mentorship

import (
	"errors"
	"fmt"
	"time"
)

// Config - параметры движка подбора. Передаётся явно, движок не читает окружение.
type Config struct {
	// MaxMenteesPerMentor - ёмкость ментора, если программа не задаёт свою.
	MaxMenteesPerMentor int

	// ResponseWindow - срок ответа ментора.
	ResponseWindow time.Duration

	// Concurrency - сколько менти обрабатывается параллельно в пакетном подборе.
	Concurrency int

	// SweepBatchSize - сколько просроченных пар обрабатывается за один проход.
	SweepBatchSize int

	// CascadeAlgorithmMatches - искать замену и после отказа по ALGORITHM-паре.
	CascadeAlgorithmMatches bool

	// Weights - веса факторов совместимости.
	Weights Weights
}

// DefaultConfig возвращает конфигурацию по умолчанию.
func DefaultConfig() Config {
	return Config{
		MaxMenteesPerMentor: DefaultMaxMenteesPerMentor,
		ResponseWindow:      DefaultResponseWindow,
		Concurrency:         8,
		SweepBatchSize:      200,
		Weights:             DefaultWeights(),
	}
}

// Validate проверяет конфигурацию.
func (c Config) Validate() error {
	var errs []error
	if c.MaxMenteesPerMentor <= 0 {
		errs = append(errs, fmt.Errorf("max mentees per mentor must be positive, got %d", c.MaxMenteesPerMentor))
	}
	if c.ResponseWindow <= 0 {
		errs = append(errs, fmt.Errorf("response window must be positive, got %s", c.ResponseWindow))
	}
	if c.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("concurrency must be positive, got %d", c.Concurrency))
	}
	if c.SweepBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("sweep batch size must be positive, got %d", c.SweepBatchSize))
	}
	if err := c.Weights.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
