package dump

import "github.com/pkg/errors"

// Configuration errors.
var (
	ErrMissingConnectionConfig   = errors.New("expected to be given `connection` options")
	ErrMissingConnectionHost     = errors.New("expected to be given `host` connection option")
	ErrMissingConnectionDatabase = errors.New("expected to be given `database` connection option")
	ErrMissingConnectionUser     = errors.New("expected to be given `user` connection option")
	ErrMissingConnectionPassword = errors.New("expected to be given `password` connection option")
	ErrInvalidModifyPattern      = errors.New("invalid modify column pattern")
	ErrInvalidOption             = errors.New("invalid dump option")
	ErrNoConnector               = errors.New("no connector configured")
)

// Consistency errors, raised when the database changes under a running dump.
var (
	ErrTableVanished      = errors.New("table vanished during dump")
	ErrColumnsUnreadable  = errors.New("table columns are unreadable")
	ErrNoCreateStatement  = errors.New("no create statement for table")
	ErrColumnMismatch     = errors.New("row does not match table columns")
	ErrMasterDataNotFound = errors.New("executor does not report binlog position")
)
