package dbx

import (
	"fmt"

	tk "github.com/quintans/toolkit"
)

const (
	FAULT_PARSE_STATEMENT      = "sql-parse"
	FAULT_INVALID_KEY          = "sql-invalid-key"
	FAULT_UNBOUND_SUBSTITUTION = "sql-unbound-substitution"
	FAULT_UNKNOWN_POSITION     = "sql-unknown-position"
	FAULT_UNBOUND_PARAMETER    = "sql-unbound-parameter"
	FAULT_STATEMENT            = "sql-statement"
	FAULT_TRANSACTION          = "sql-transaction"
	FAULT_UNSUPPORTED          = "sql-unsupported"
)

const NoDescription = "<No description>"

func newFail(code, message string) *tk.Fail {
	return &tk.Fail{Code: code, Message: message}
}

var (
	_ error = (*ParseError)(nil)
	_ error = (*InvalidKeyError)(nil)
	_ error = (*UnboundSubstitutionError)(nil)
	_ error = (*UnknownPositionError)(nil)
	_ error = (*UnboundParameterError)(nil)
	_ error = (*StatementError)(nil)
	_ error = (*TransactionError)(nil)
	_ error = (*UnsupportedOperationError)(nil)
)

// ParseError reports malformed template text.
type ParseError struct {
	*tk.Fail
	Text string
}

func NewParseError(message, text string) *ParseError {
	return &ParseError{Fail: newFail(FAULT_PARSE_STATEMENT, message), Text: text}
}

func (e *ParseError) Error() string {
	return e.Message
}

type InvalidKeyError struct {
	*tk.Fail
	Key string
}

func NewInvalidKeyError(key string) *InvalidKeyError {
	return &InvalidKeyError{
		Fail: newFail(FAULT_INVALID_KEY, key+" is not a substitution name"),
		Key:  key,
	}
}

func (e *InvalidKeyError) Error() string {
	return e.Message
}

type UnboundSubstitutionError struct {
	*tk.Fail
	Name string
}

func NewUnboundSubstitutionError(name string) *UnboundSubstitutionError {
	return &UnboundSubstitutionError{
		Fail: newFail(FAULT_UNBOUND_SUBSTITUTION, "The substitution #"+name+"# was not set"),
		Name: name,
	}
}

func (e *UnboundSubstitutionError) Error() string {
	return e.Message
}

type UnknownPositionError struct {
	*tk.Fail
	Position int
}

func NewUnknownPositionError(position int) *UnknownPositionError {
	return &UnknownPositionError{
		Fail:     newFail(FAULT_UNKNOWN_POSITION, fmt.Sprintf("No parameter at position %d", position)),
		Position: position,
	}
}

func (e *UnknownPositionError) Error() string {
	return e.Message
}

// UnboundParameterError is raised when the evaluator chain yields nothing for a parameter.
type UnboundParameterError struct {
	*tk.Fail
	Name        string
	Description string
	SQL         string
}

func NewUnboundParameterError(name, description, sql string) *UnboundParameterError {
	if description == "" {
		description = NoDescription
	}
	msg := tk.NewStrBuffer()
	msg.Add("The parameter |", name, "| was not set")
	msg.Add("\nSQL Description: ", description)
	msg.Add("\nSQL: ", sql)
	return &UnboundParameterError{
		Fail:        newFail(FAULT_UNBOUND_PARAMETER, msg.String()),
		Name:        name,
		Description: description,
		SQL:         sql,
	}
}

func (e *UnboundParameterError) Error() string {
	return e.Message
}

// StatementError wraps a driver failure with the statement context.
type StatementError struct {
	*tk.Fail
	Description string
	SQL         string
	Cause       error
}

func NewStatementError(description, sql string, cause error) *StatementError {
	if description == "" {
		description = NoDescription
	}
	msg := tk.NewStrBuffer()
	msg.Add("SQL Description: ", description)
	msg.Add("\nSQL: ", sql)
	if cause != nil {
		msg.Add("\nNested exception message: ", cause.Error())
	}
	return &StatementError{
		Fail:        newFail(FAULT_STATEMENT, msg.String()),
		Description: description,
		SQL:         sql,
		Cause:       cause,
	}
}

func (e *StatementError) Error() string {
	return e.Message
}

func (e *StatementError) Unwrap() error {
	return e.Cause
}

type TransactionError struct {
	*tk.Fail
	Cause error
}

func NewTransactionError(message string, cause error) *TransactionError {
	if cause != nil {
		message = message + ": " + cause.Error()
	}
	return &TransactionError{Fail: newFail(FAULT_TRANSACTION, message), Cause: cause}
}

func (e *TransactionError) Error() string {
	return e.Message
}

func (e *TransactionError) Unwrap() error {
	return e.Cause
}

type UnsupportedOperationError struct {
	*tk.Fail
	Operation string
}

func NewUnsupportedOperationError(operation string) *UnsupportedOperationError {
	return &UnsupportedOperationError{
		Fail:      newFail(FAULT_UNSUPPORTED, "Cursor."+operation+"() cannot be called on this cursor"),
		Operation: operation,
	}
}

func (e *UnsupportedOperationError) Error() string {
	return e.Message
}
