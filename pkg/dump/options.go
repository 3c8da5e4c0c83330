package dump

import (
	"strings"

	"github.com/pkg/errors"
)

const (
	DefaultMaxRowsPerInsert = 1000
	DefaultMaxStatementSize = 1 << 20
	DefaultTriggerDelimiter = ";;"
)

// Options is the user-facing dump configuration. The zero value dumps
// everything: every toggle is phrased so that false keeps the default.
type Options struct {
	Connection *ConnectionConfig `koanf:"connection"`
	Dump       DumpOptions       `koanf:"dump"`
}

type DumpOptions struct {
	// Tables is the filter set; empty means every table and view.
	Tables []string `koanf:"tables"`
	// ExcludeTables turns Tables into a blacklist.
	ExcludeTables bool `koanf:"exclude_tables"`
	NoHeaders     bool `koanf:"no_headers"`

	Schema  SchemaOptions  `koanf:"schema"`
	Data    DataOptions    `koanf:"data"`
	Trigger TriggerOptions `koanf:"trigger"`
}

type SchemaOptions struct {
	Skip            bool `koanf:"skip"`
	DropTable       bool `koanf:"drop_table"`
	NoAutoIncrement bool `koanf:"no_auto_increment"`
	NoEngine        bool `koanf:"no_engine"`
	NoCharset       bool `koanf:"no_charset"`
	ViewAlgorithm   bool `koanf:"view_algorithm"`
	ViewDefiner     bool `koanf:"view_definer"`
	ViewSQLSecurity bool `koanf:"view_sql_security"`
}

type DataOptions struct {
	Skip             bool `koanf:"skip"`
	MaxRowsPerInsert int  `koanf:"max_rows_per_insert"`
	MaxStatementSize int  `koanf:"max_statement_size"`
	LockTables       bool `koanf:"lock_tables"`
	MasterData       bool `koanf:"master_data"`

	// Where holds a raw SQL condition per table name.
	Where map[string]string `koanf:"where"`
	// ModifyColumns holds substitution rules per table name.
	ModifyColumns map[string]ModifyColumnList `koanf:"modify_columns"`
}

type TriggerOptions struct {
	Skip           bool   `koanf:"skip"`
	Delimiter      string `koanf:"delimiter"`
	NoDropIfExists bool   `koanf:"no_drop_if_exists"`
	Definer        bool   `koanf:"definer"`
}

// Config is the fully resolved configuration handed to every stage.
// Stages never look at Options or defaults themselves.
type Config struct {
	Connection    ConnectionConfig
	Tables        []string
	ExcludeTables bool
	Headers       bool

	Schema  SchemaConfig
	Data    DataConfig
	Trigger TriggerConfig
}

type SchemaConfig struct {
	Enabled         bool
	DropTable       bool
	AutoIncrement   bool
	Engine          bool
	Charset         bool
	ViewAlgorithm   bool
	ViewDefiner     bool
	ViewSQLSecurity bool
}

type DataConfig struct {
	Enabled          bool
	MaxRowsPerInsert int
	MaxStatementSize int
	LockTables       bool
	MasterData       bool
	Where            map[string]string
	ModifyColumns    map[string]ModifyColumnList

	rules map[string]ColumnRules
}

// Rules returns the compiled substitution rules of a table, possibly nil.
func (c DataConfig) Rules(table string) ColumnRules {
	return c.rules[table]
}

type TriggerConfig struct {
	Enabled      bool
	Delimiter    string
	DropIfExists bool
	Definer      bool
}

// Resolve validates opts and fills every default. The connection is
// validated first so that a broken config never reaches the network.
func Resolve(opts Options) (Config, error) {
	if err := ValidateConnection(opts.Connection); err != nil {
		return Config{}, err
	}

	conn := *opts.Connection
	conn.Port = conn.GetPort()

	d := opts.Dump

	cfg := Config{
		Connection:    conn,
		Tables:        d.Tables,
		ExcludeTables: d.ExcludeTables,
		Headers:       !d.NoHeaders,
		Schema: SchemaConfig{
			Enabled:         !d.Schema.Skip,
			DropTable:       d.Schema.DropTable,
			AutoIncrement:   !d.Schema.NoAutoIncrement,
			Engine:          !d.Schema.NoEngine,
			Charset:         !d.Schema.NoCharset,
			ViewAlgorithm:   d.Schema.ViewAlgorithm,
			ViewDefiner:     d.Schema.ViewDefiner,
			ViewSQLSecurity: d.Schema.ViewSQLSecurity,
		},
		Data: DataConfig{
			Enabled:          !d.Data.Skip,
			MaxRowsPerInsert: d.Data.MaxRowsPerInsert,
			MaxStatementSize: d.Data.MaxStatementSize,
			LockTables:       d.Data.LockTables,
			MasterData:       d.Data.MasterData,
			Where:            d.Data.Where,
			ModifyColumns:    d.Data.ModifyColumns,
		},
		Trigger: TriggerConfig{
			Enabled:      !d.Trigger.Skip,
			Delimiter:    strings.TrimSpace(d.Trigger.Delimiter),
			DropIfExists: !d.Trigger.NoDropIfExists,
			Definer:      d.Trigger.Definer,
		},
	}

	switch {
	case cfg.Data.MaxRowsPerInsert < 0:
		return Config{}, errors.Wrapf(ErrInvalidOption, "max rows per insert %d", cfg.Data.MaxRowsPerInsert)
	case cfg.Data.MaxRowsPerInsert == 0:
		cfg.Data.MaxRowsPerInsert = DefaultMaxRowsPerInsert
	}

	switch {
	case cfg.Data.MaxStatementSize < 0:
		return Config{}, errors.Wrapf(ErrInvalidOption, "max statement size %d", cfg.Data.MaxStatementSize)
	case cfg.Data.MaxStatementSize == 0:
		cfg.Data.MaxStatementSize = DefaultMaxStatementSize
	}

	if cfg.Trigger.Delimiter == "" {
		cfg.Trigger.Delimiter = DefaultTriggerDelimiter
	}

	if strings.ContainsAny(cfg.Trigger.Delimiter, " \t\r\n") {
		return Config{}, errors.Wrapf(ErrInvalidOption, "trigger delimiter %q", cfg.Trigger.Delimiter)
	}

	for table, where := range cfg.Data.Where {
		if strings.TrimSpace(where) == "" {
			return Config{}, errors.Wrapf(ErrInvalidOption, "empty where condition for table %s", table)
		}
	}

	cfg.Data.rules = make(map[string]ColumnRules, len(cfg.Data.ModifyColumns))

	for table, list := range cfg.Data.ModifyColumns {
		rules, err := CompileModifyColumns(list)
		if err != nil {
			return Config{}, errors.Wrapf(err, "table %s", table)
		}

		cfg.Data.rules[table] = rules
	}

	return cfg, nil
}
