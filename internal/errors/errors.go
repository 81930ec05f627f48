// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrMarketClosed     = errors.New("market is closed")
	ErrNoPosition       = errors.New("no open position")
	ErrOrderNotFound    = errors.New("order not found")
	ErrDayTerminal      = errors.New("trading day is terminal")
	ErrEngineStopped    = errors.New("engine stopped")
	ErrFeedStale        = errors.New("price feed is stale")
)

// ConfigError represents an instrument or session configuration error.
// It is fatal to starting a trading session for that instrument.
type ConfigError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field string, value interface{}, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// BrokerError represents an error from the broker API. Retryable
// distinguishes transient network failures from semantic rejections.
type BrokerError struct {
	Code      string
	Message   string
	Retryable bool
	Err       error
}

func (e *BrokerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("broker error [%s]: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("broker error [%s]: %s", e.Code, e.Message)
}

func (e *BrokerError) Unwrap() error {
	return e.Err
}

// NewBrokerError creates a new non-retryable BrokerError.
func NewBrokerError(code, message string, err error) *BrokerError {
	return &BrokerError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewNetworkError creates a retryable BrokerError for transport failures.
func NewNetworkError(message string, err error) *BrokerError {
	return &BrokerError{
		Code:      "NETWORK",
		Message:   message,
		Retryable: true,
		Err:       err,
	}
}

// IsRetryable reports whether err is a transient broker failure.
func IsRetryable(err error) bool {
	var be *BrokerError
	if errors.As(err, &be) {
		return be.Retryable
	}
	return false
}

// OrderError represents an error related to order operations.
type OrderError struct {
	OrderID string
	Symbol  string
	Action  string
	Reason  string
	Err     error
}

func (e *OrderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("order error [%s] %s %s: %s: %v", e.OrderID, e.Action, e.Symbol, e.Reason, e.Err)
	}
	return fmt.Sprintf("order error [%s] %s %s: %s", e.OrderID, e.Action, e.Symbol, e.Reason)
}

func (e *OrderError) Unwrap() error {
	return e.Err
}

// NewOrderError creates a new OrderError.
func NewOrderError(orderID, symbol, action, reason string, err error) *OrderError {
	return &OrderError{
		OrderID: orderID,
		Symbol:  symbol,
		Action:  action,
		Reason:  reason,
		Err:     err,
	}
}

// InvalidOperationError represents a command that is not permitted in
// the current state. It causes no state mutation.
type InvalidOperationError struct {
	Operation string
	Reason    string
}

func (e *InvalidOperationError) Error() string {
	return fmt.Sprintf("invalid operation [%s]: %s", e.Operation, e.Reason)
}

// NewInvalidOperation creates a new InvalidOperationError.
func NewInvalidOperation(operation, reason string) *InvalidOperationError {
	return &InvalidOperationError{
		Operation: operation,
		Reason:    reason,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
