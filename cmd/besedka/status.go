package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/besedka-chat/besedka/pkg/config"
)

type appStatus struct {
	GeneratedAt     time.Time
	Environment     string
	Port            string
	ChatDBPath      string
	UsersDBPath     string
	UploadDir       string
	Users           int64
	Chats           int64
	PrivateChats    int64
	Memberships     int64
	Messages        int64
	UnreadMessages  int64
	LatestMessageAt string
	ChatDBSize      int64
	UsersDBSize     int64
	UploadDirSize   int64
	UploadFileCount int64
	DBMetricsReady  bool
	DBWarning       string
	StorageWarnings []string
}

type statusOptions struct {
	JSON bool
}

func parseStatusArgs(args []string) (statusOptions, error) {
	opts := statusOptions{}
	for _, arg := range args {
		switch arg {
		case "--json", "-j":
			opts.JSON = true
		default:
			return opts, fmt.Errorf("unknown status flag: %s", arg)
		}
	}
	return opts, nil
}

func runStatus(cfg *config.Config, out io.Writer, args []string) error {
	opts, err := parseStatusArgs(args)
	if err != nil {
		return err
	}

	status := collectStatus(cfg)
	if opts.JSON {
		return printStatusJSON(out, status)
	}
	printStatus(out, status)
	return nil
}

func collectStatus(cfg *config.Config) appStatus {
	status := appStatus{
		GeneratedAt: time.Now(),
		Environment: cfg.Environment,
		Port:        cfg.Port,
		ChatDBPath:  cfg.ChatDBPath,
		UsersDBPath: cfg.UsersDBPath,
		UploadDir:   cfg.UploadDir,
	}

	// WAL and SHM sidecars count toward the on-disk footprint.
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if size, err := fileSize(cfg.ChatDBPath + suffix); err == nil {
			status.ChatDBSize += size
		}
		if size, err := fileSize(cfg.UsersDBPath + suffix); err == nil {
			status.UsersDBSize += size
		}
	}

	if bytes, files, err := dirUsage(cfg.UploadDir); err == nil {
		status.UploadDirSize = bytes
		status.UploadFileCount = files
	} else {
		status.StorageWarnings = append(status.StorageWarnings, fmt.Sprintf("upload dir: %v", err))
	}

	usersConn, err := openForStatus(cfg.UsersDBPath)
	if err != nil {
		status.DBWarning = err.Error()
		return status
	}
	defer usersConn.Close()

	chatConn, err := openForStatus(cfg.ChatDBPath)
	if err != nil {
		status.DBWarning = err.Error()
		return status
	}
	defer chatConn.Close()

	counts := []struct {
		dest  *int64
		conn  *sql.DB
		query string
	}{
		{&status.Users, usersConn, "SELECT COUNT(*) FROM personal_date"},
		{&status.Chats, chatConn, "SELECT COUNT(*) FROM chats"},
		{&status.PrivateChats, chatConn, "SELECT COUNT(*) FROM chats WHERE is_private = 1"},
		{&status.Memberships, chatConn, "SELECT COUNT(*) FROM chat_members"},
		{&status.Messages, chatConn, "SELECT COUNT(*) FROM messages"},
		{&status.UnreadMessages, chatConn, "SELECT COUNT(*) FROM messages WHERE is_read IS NULL OR is_read = 0"},
	}

	for _, c := range counts {
		if err := c.conn.QueryRow(c.query).Scan(c.dest); err != nil {
			status.DBWarning = fmt.Sprintf("could not read database stats: %v", err)
			return status
		}
	}

	if err := chatConn.QueryRow("SELECT COALESCE(MAX(timestamp), '') FROM messages").Scan(&status.LatestMessageAt); err != nil {
		status.DBWarning = fmt.Sprintf("could not read database stats: %v", err)
		return status
	}

	status.DBMetricsReady = true
	return status
}

func openForStatus(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("database unavailable: %w", err)
	}

	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("database unavailable: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("database unavailable: %w", err)
	}

	return conn, nil
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	switch {
	case err != nil:
		return 0, err
	case info.IsDir():
		return 0, fmt.Errorf("%s is a directory", path)
	}
	return info.Size(), nil
}

// dirUsage sums the sizes of every regular file under root, including
// the uuid-named uploads in nested directories.
func dirUsage(root string) (int64, int64, error) {
	var bytes, files int64

	err := filepath.WalkDir(root, func(_ string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		bytes += info.Size()
		files++
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	return bytes, files, nil
}

func formatBytes(bytes int64) string {
	if bytes < 1024 {
		return fmt.Sprintf("%d B", bytes)
	}
	value := float64(bytes)
	for _, unit := range []string{"KiB", "MiB", "GiB", "TiB", "PiB", "EiB"} {
		value /= 1024
		if value < 1024 {
			return fmt.Sprintf("%.1f %s", value, unit)
		}
	}
	return fmt.Sprintf("%.1f ZiB", value/1024)
}

func formatTimestamp(value string) string {
	if value == "" {
		return "n/a"
	}
	return value
}

func printStatus(out io.Writer, status appStatus) {
	fmt.Fprintln(out, "Besedka Status")
	fmt.Fprintf(out, "Generated at: %s\n", status.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(out, "Environment : %s\n", status.Environment)
	fmt.Fprintf(out, "Port        : %s\n", status.Port)
	fmt.Fprintf(out, "Chat DB     : %s\n", status.ChatDBPath)
	fmt.Fprintf(out, "Users DB    : %s\n", status.UsersDBPath)
	fmt.Fprintf(out, "Uploads dir : %s\n", status.UploadDir)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Data")
	if status.DBMetricsReady {
		fmt.Fprintf(out, "  Users             : %d\n", status.Users)
		fmt.Fprintf(out, "  Chats             : %d\n", status.Chats)
		fmt.Fprintf(out, "  Private chats     : %d\n", status.PrivateChats)
		fmt.Fprintf(out, "  Memberships       : %d\n", status.Memberships)
		fmt.Fprintf(out, "  Messages          : %d\n", status.Messages)
		fmt.Fprintf(out, "  Unread messages   : %d\n", status.UnreadMessages)
		fmt.Fprintf(out, "  Latest message at : %s\n", formatTimestamp(status.LatestMessageAt))
	} else {
		fmt.Fprintln(out, "  Database metrics  : n/a")
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Storage")
	fmt.Fprintf(out, "  Chat DB files  : %s\n", formatBytes(status.ChatDBSize))
	fmt.Fprintf(out, "  Users DB files : %s\n", formatBytes(status.UsersDBSize))
	fmt.Fprintf(out, "  Upload files   : %d\n", status.UploadFileCount)
	fmt.Fprintf(out, "  Upload size    : %s\n", formatBytes(status.UploadDirSize))

	if status.DBWarning != "" {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Warning: %s\n", status.DBWarning)
	}

	if len(status.StorageWarnings) > 0 {
		fmt.Fprintln(out)
		for _, warning := range status.StorageWarnings {
			fmt.Fprintf(out, "Warning: %s\n", warning)
		}
	}
}

func printStatusJSON(out io.Writer, status appStatus) error {
	payload := map[string]any{
		"generated_at":  status.GeneratedAt.Format(time.RFC3339),
		"environment":   status.Environment,
		"port":          status.Port,
		"chat_db_path":  status.ChatDBPath,
		"users_db_path": status.UsersDBPath,
		"upload_dir":    status.UploadDir,
		"metrics_ready": status.DBMetricsReady,
		"metrics": map[string]any{
			"users":             status.Users,
			"chats":             status.Chats,
			"private_chats":     status.PrivateChats,
			"memberships":       status.Memberships,
			"messages":          status.Messages,
			"unread_messages":   status.UnreadMessages,
			"latest_message_at": formatTimestamp(status.LatestMessageAt),
		},
		"storage": map[string]any{
			"chat_db_bytes":     status.ChatDBSize,
			"users_db_bytes":    status.UsersDBSize,
			"upload_dir_bytes":  status.UploadDirSize,
			"upload_file_count": status.UploadFileCount,
			"chat_db_hum":       formatBytes(status.ChatDBSize),
			"users_db_hum":      formatBytes(status.UsersDBSize),
			"upload_dir_hum":    formatBytes(status.UploadDirSize),
		},
		"warnings": map[string]any{
			"database": status.DBWarning,
			"storage":  status.StorageWarnings,
		},
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}
