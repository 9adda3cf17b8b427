package profile

import (
	"errors"
	"fmt"
)

// 呼叫端錯誤：在任何寫入前被偵測，狀態不會改變
var (
	ErrIdentityNotFound   = errors.New("identity not found")
	ErrUsernameConflict   = errors.New("username is held by another identity")
	ErrDepartmentNotFound = errors.New("department not found")
	ErrUnknownKind        = errors.New("unknown profile kind")
	ErrInvalidField       = errors.New("invalid field")
)

// 基礎設施錯誤：交易已回滾，可以重試
var ErrTransactionFailure = errors.New("transaction failure")

// 儲存層錯誤
var (
	ErrNotFound     = errors.New("record not found")
	ErrStaleProfile = errors.New("profile was modified concurrently")
)

// 非致命警告：提交已成功，只有附帶的副作用失敗
var (
	ErrUploadWarning  = errors.New("attachment not persisted")
	ErrPublishWarning = errors.New("profile event not published")
)

var (
	ErrValidationType  *ValidationError
	ErrTransactionType *TransactionError
	ErrWarningType     *Warning
)

// ValidationError 指出是哪個輸入欄位造成呼叫端錯誤
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// TransactionError 包裝交易中發生的錯誤，同時符合 ErrTransactionFailure 與原始錯誤
type TransactionError struct {
	Op  string
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("[%s] %v, err=%v", e.Op, ErrTransactionFailure, e.Err)
}

func (e *TransactionError) Unwrap() []error {
	return []error{ErrTransactionFailure, e.Err}
}

// Warning 是提交後副作用失敗的紀錄
type Warning struct {
	Kind error
	Err  error
}

func (w *Warning) Error() string {
	return fmt.Sprintf("%v, err=%v", w.Kind, w.Err)
}

func (w *Warning) Unwrap() []error {
	return []error{w.Kind, w.Err}
}

// IsCallerError 回傳錯誤是否屬於呼叫端可以自行修正的錯誤
func IsCallerError(err error) bool {
	return errors.Is(err, ErrIdentityNotFound) ||
		errors.Is(err, ErrUsernameConflict) ||
		errors.Is(err, ErrDepartmentNotFound) ||
		errors.Is(err, ErrUnknownKind) ||
		errors.Is(err, ErrInvalidField)
}
