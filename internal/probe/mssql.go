package probe

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	mssqldb "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"
)

const connectionInfoQuery = `SELECT auth_scheme, encrypt_option FROM sys.dm_exec_connections WHERE session_id = @@SPID`

// MSSQLConnector tests connectivity with integrated authentication
type MSSQLConnector struct {
	Timeout time.Duration
}

// NewSQLConnector returns a go-mssqldb backed connector
func NewSQLConnector(timeout time.Duration) *MSSQLConnector {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &MSSQLConnector{Timeout: timeout}
}

// ConnectionString builds the DSN used for server, which may be HOST,
// HOST\INSTANCE or HOST,PORT
func (m *MSSQLConnector) ConnectionString(server string) string {
	return fmt.Sprintf("server=%s;database=master;encrypt=true;TrustServerCertificate=true;app name=sqlcheck;connection timeout=%d",
		server, int(m.Timeout.Seconds()))
}

// Test connects, reads the session's auth scheme and encryption, and disconnects
func (m *MSSQLConnector) Test(ctx context.Context, server string) (ConnectionInfo, error) {
	cfg, err := msdsn.Parse(m.ConnectionString(server))
	if err != nil {
		return ConnectionInfo{}, fmt.Errorf("parse connection string: %w", err)
	}
	db := sql.OpenDB(mssqldb.NewConnectorConfig(cfg))
	defer db.Close()

	ctx, cancel := context.WithTimeout(ctx, m.Timeout)
	defer cancel()

	var info ConnectionInfo
	if err := db.QueryRowContext(ctx, connectionInfoQuery).Scan(&info.AuthScheme, &info.EncryptOption); err != nil {
		return ConnectionInfo{}, fmt.Errorf("connect to %s: %w", server, err)
	}
	return info, nil
}
