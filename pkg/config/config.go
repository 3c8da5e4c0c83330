package config

import (
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/partyzanex/mydump/pkg/dump"
	"github.com/partyzanex/mydump/pkg/mysql"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// EnvPrefix is the prefix of environment variables. A double underscore
// separates levels: MYDUMP_DUMP__DATA__LOCK_TABLES=true.
const EnvPrefix = "MYDUMP_"

const redacted = "******"

// Config is the command line configuration.
type Config struct {
	Connection dump.ConnectionConfig `koanf:"connection"`
	// DSN replaces the connection section when set.
	DSN  string           `koanf:"dsn"`
	Dump dump.DumpOptions `koanf:"dump"`

	Output   Output `koanf:"output"`
	Threads  int    `koanf:"threads"`
	Verbose  bool   `koanf:"verbose"`
	Debug    bool   `koanf:"debug"`
	Progress bool   `koanf:"progress"`
}

type Output struct {
	// Path is the dump file, or the directory when Dir is set.
	Path     string `koanf:"path"`
	Dir      bool   `koanf:"dir"`
	Compress string `koanf:"compress"`
	Checksum bool   `koanf:"checksum"`
	// Manifest is written when not empty; .yaml and .yml select yaml.
	Manifest string `koanf:"manifest"`
}

var defaults = map[string]interface{}{
	"connection.host": "localhost",
	"connection.port": dump.DefaultPort,
	"threads":         1,
	"output.path":     "dump.sql",
	"output.compress": "none",
}

// flagKeys maps flag names to configuration keys.
var flagKeys = map[string]string{
	"user":               "connection.user",
	"password":           "connection.password",
	"host":               "connection.host",
	"port":               "connection.port",
	"database":           "connection.database",
	"dsn":                "dsn",
	"tables":             "dump.tables",
	"exclude-tables":     "dump.exclude_tables",
	"no-headers":         "dump.no_headers",
	"no-schema":          "dump.schema.skip",
	"drop-table":         "dump.schema.drop_table",
	"no-auto-increment":  "dump.schema.no_auto_increment",
	"no-engine":          "dump.schema.no_engine",
	"no-charset":         "dump.schema.no_charset",
	"no-data":            "dump.data.skip",
	"limit":              "dump.data.max_rows_per_insert",
	"max-statement-size": "dump.data.max_statement_size",
	"lock-tables":        "dump.data.lock_tables",
	"master-data":        "dump.data.master_data",
	"no-triggers":        "dump.trigger.skip",
	"trigger-delimiter":  "dump.trigger.delimiter",
	"threads":            "threads",
	"verbose":            "verbose",
	"debug":              "debug",
	"progress":           "progress",
	"output":             "output.path",
	"dir":                "output.dir",
	"compress":           "output.compress",
	"checksum":           "output.checksum",
	"manifest":           "output.manifest",
}

// RegisterFlags defines the command line flags on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "yaml configuration file")

	fs.StringP("user", "u", "", "user")
	fs.StringP("password", "p", "", "password")
	fs.StringP("host", "h", "localhost", "hostname")
	fs.IntP("port", "P", dump.DefaultPort, "port")
	fs.StringP("database", "d", "", "database")
	fs.String("dsn", "", "connection DSN, e.g. user:password@tcp(localhost:3306)/db")

	fs.StringSlice("tables", []string{}, "tables list")
	fs.Bool("exclude-tables", false, "dump every table except --tables")
	fs.Bool("no-headers", false, "dump tables without headers")

	fs.Bool("no-schema", false, "dump without DDL (data only)")
	fs.Bool("drop-table", false, "add DROP TABLE IF EXISTS before CREATE TABLE")
	fs.Bool("no-auto-increment", false, "strip AUTO_INCREMENT table option")
	fs.Bool("no-engine", false, "strip ENGINE table option")
	fs.Bool("no-charset", false, "strip CHARSET and COLLATE table options")

	fs.Bool("no-data", false, "dump only DDL (without data)")
	fs.IntP("limit", "l", dump.DefaultMaxRowsPerInsert, "max rows per INSERT statement")
	fs.Int("max-statement-size", dump.DefaultMaxStatementSize, "max INSERT statement size in bytes")
	fs.Bool("lock-tables", false, "flush tables with read lock while dumping")
	fs.Bool("master-data", false, "write the binlog position as a comment")

	fs.Bool("no-triggers", false, "dump without triggers")
	fs.String("trigger-delimiter", dump.DefaultTriggerDelimiter, "delimiter of trigger statements")

	fs.IntP("threads", "t", 1, "number of threads")
	fs.BoolP("verbose", "v", false, "verbose progress")
	fs.Bool("debug", false, "debug mode")
	fs.Bool("progress", false, "show a progress bar")

	fs.StringP("output", "o", "dump.sql", "output file, or directory with --dir")
	fs.Bool("dir", false, "write a file per table into the output directory")
	fs.String("compress", "none", "compression: none, gzip or zstd")
	fs.Bool("checksum", false, "write xxh3 checksum files")
	fs.String("manifest", "", "write a json or yaml manifest to this path")
}

// Load reads defaults, the yaml file at path, MYDUMP_ environment variables
// and the flags changed on fs, each overriding the previous one.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	err := k.Load(confmap.Provider(defaults, "."), nil)
	if err != nil {
		return nil, errors.Wrap(err, "unable to load defaults")
	}

	if path != "" {
		err = k.Load(file.Provider(path), yaml.Parser())
		if err != nil {
			return nil, errors.Wrapf(err, "unable to read config file %s", path)
		}
	}

	err = k.Load(env.Provider(EnvPrefix, ".", envKey), nil)
	if err != nil {
		return nil, errors.Wrap(err, "unable to load environment")
	}

	if fs != nil {
		err = k.Load(posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}

			return key, posflag.FlagVal(fs, f)
		}), nil)
		if err != nil {
			return nil, errors.Wrap(err, "unable to load flags")
		}
	}

	cfg := &Config{}

	err = k.Unmarshal("", cfg)
	if err != nil {
		return nil, errors.Wrap(err, "unable to decode config")
	}

	return cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Options returns the dump options. A DSN replaces the connection section.
func (c *Config) Options() (dump.Options, error) {
	conn := c.Connection

	if c.DSN != "" {
		parsed, err := mysql.ParseDSN(c.DSN)
		if err != nil {
			return dump.Options{}, err
		}

		conn = parsed
	}

	return dump.Options{
		Connection: &conn,
		Dump:       c.Dump,
	}, nil
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.Connection.Password != nil {
		c.Connection.Password = dump.Password(redacted)
	}

	if c.DSN != "" {
		if conn, err := mysql.ParseDSN(c.DSN); err == nil {
			conn.Password = dump.Password(redacted)
			c.DSN = mysql.FormatDSN(conn)
		} else {
			c.DSN = redacted
		}
	}

	return c
}
