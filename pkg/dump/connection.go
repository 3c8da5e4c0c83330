package dump

// DefaultPort is used when the connection config has no port.
const DefaultPort = 3306

// ConnectionConfig describes how to reach the source database.
// A nil Password means it was never given; an empty one is a valid password.
type ConnectionConfig struct {
	Host     string            `koanf:"host" json:"host" yaml:"host"`
	Port     int               `koanf:"port" json:"port" yaml:"port"`
	Database string            `koanf:"database" json:"database" yaml:"database"`
	User     string            `koanf:"user" json:"user" yaml:"user"`
	Password *string           `koanf:"password" json:"-" yaml:"-"`
	Params   map[string]string `koanf:"params" json:"params,omitempty" yaml:"params,omitempty"`
}

// ValidateConnection checks required fields in a fixed order
// (config, host, database, user, password) and never touches the network.
func ValidateConnection(conn *ConnectionConfig) error {
	switch {
	case conn == nil:
		return ErrMissingConnectionConfig
	case conn.Host == "":
		return ErrMissingConnectionHost
	case conn.Database == "":
		return ErrMissingConnectionDatabase
	case conn.User == "":
		return ErrMissingConnectionUser
	case conn.Password == nil:
		return ErrMissingConnectionPassword
	}

	return nil
}

// GetPassword returns the password or an empty string.
func (conn ConnectionConfig) GetPassword() string {
	if conn.Password == nil {
		return ""
	}

	return *conn.Password
}

// GetPort returns the configured port or DefaultPort.
func (conn ConnectionConfig) GetPort() int {
	if conn.Port <= 0 {
		return DefaultPort
	}

	return conn.Port
}

// Password is a helper for building configs in code.
func Password(p string) *string {
	return &p
}
