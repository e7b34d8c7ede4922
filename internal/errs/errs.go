package errs

import "errors"

var ErrAccountNotFound = errors.New("account not found")
var ErrAlreadyRegistered = errors.New("account already registered")
var ErrInsufficientFunds = errors.New("not enough balance")
var ErrBalanceConflict = errors.New("balance changed concurrently")
var ErrWithdrawalNotFound = errors.New("withdrawal not found")
var ErrWithdrawalNotPending = errors.New("withdrawal is not pending")
var ErrInvalidToken = errors.New("invalid token")
