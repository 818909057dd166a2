package transcript

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type Entry struct {
	SessionID string
	Role      Role
	Text      string
	Timestamp time.Time
}

// Log appends chat turns to one markdown file per session under Root.
type Log struct {
	Root string
	mu   sync.Mutex
}

func New(root string) *Log {
	return &Log{Root: strings.TrimSpace(root)}
}

var pathSanitizer = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

func (l *Log) Path(sessionID string) string {
	segment := sanitizeSegment(sessionID)
	if l == nil || l.Root == "" || segment == "" {
		return ""
	}
	return filepath.Join(l.Root, "sessions", segment+".md")
}

func (l *Log) Append(entry Entry) error {
	logPath := l.Path(entry.SessionID)
	if logPath == "" {
		return nil
	}
	text := strings.TrimSpace(entry.Text)
	if text == "" {
		return nil
	}
	role := Role(strings.ToLower(strings.TrimSpace(string(entry.Role))))
	if role == "" {
		role = RoleSystem
	}
	timestamp := entry.Timestamp.UTC()
	if entry.Timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return err
	}
	header := ""
	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		header = fmt.Sprintf("# Chat Log\n\n- session_id: `%s`\n\n", strings.TrimSpace(entry.SessionID))
	}
	body := fmt.Sprintf(
		"## %s `%s`\n\n%s\n\n",
		timestamp.Format(time.RFC3339),
		strings.ToUpper(string(role)),
		text,
	)

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	if header != "" {
		if _, err := file.WriteString(header); err != nil {
			return err
		}
	}
	_, err = file.WriteString(body)
	return err
}

// Tail returns the last n turns as "role: text" lines, oldest first.
// A missing log yields an empty slice.
func (l *Log) Tail(sessionID string, n int) ([]string, error) {
	logPath := l.Path(sessionID)
	if logPath == "" || n <= 0 {
		return nil, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	file, err := os.Open(logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var (
		turns []string
		role  string
		body  []string
	)
	flush := func() {
		if role == "" {
			return
		}
		text := strings.TrimSpace(strings.Join(body, "\n"))
		if text != "" {
			turns = append(turns, role+": "+text)
		}
		role, body = "", nil
	}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "## ") {
			flush()
			role = parseRole(line)
			continue
		}
		if role != "" {
			body = append(body, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	return turns, nil
}

// Remove deletes the session log, if any.
func (l *Log) Remove(sessionID string) error {
	logPath := l.Path(sessionID)
	if logPath == "" {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.Remove(logPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func parseRole(heading string) string {
	start := strings.Index(heading, "`")
	end := strings.LastIndex(heading, "`")
	if start < 0 || end <= start {
		return ""
	}
	return strings.ToLower(heading[start+1 : end])
}

func sanitizeSegment(value string) string {
	trimmed := strings.TrimSpace(value)
	trimmed = strings.ReplaceAll(trimmed, " ", "-")
	trimmed = pathSanitizer.ReplaceAllString(trimmed, "-")
	trimmed = strings.Trim(trimmed, "-.")
	return strings.ToLower(trimmed)
}
