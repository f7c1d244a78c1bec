package services

import (
	"bufio"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// SubscriberStore holds the live subscriber set. The file watcher replaces
// the whole set asynchronously; the alert cycle reads one snapshot per cycle
// and treats it as immutable for that cycle. Last writer wins.
type SubscriberStore struct {
	mutex       sync.RWMutex
	subscribers []string
}

func NewSubscriberStore() *SubscriberStore {
	return &SubscriberStore{}
}

// Current returns a copy of the subscriber set so callers can iterate without
// holding the lock.
func (s *SubscriberStore) Current() []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	snapshot := make([]string, len(s.subscribers))
	copy(snapshot, s.subscribers)
	return snapshot
}

// Replace swaps in a new subscriber set wholesale. No diffing or merging.
func (s *SubscriberStore) Replace(newSet []string) {
	s.mutex.Lock()
	s.subscribers = newSet
	s.mutex.Unlock()

	logrus.Infof("Email list updated: %d addresses", len(newSet))
}

// Count returns the current number of subscribers.
func (s *SubscriberStore) Count() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.subscribers)
}

// LoadSubscriberFile reads the subscriber list file: one address per line,
// blank lines and lines starting with # ignored, addresses lower-cased.
// Invalid lines are logged and skipped, never fatal. A missing file is
// created with a comment header and yields an empty list.
func LoadSubscriberFile(path string) []string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logrus.Warnf("%s not found. Creating empty file.", path)
		header := "# Add email addresses (one per line)\n# Lines starting with # are comments\n"
		if writeErr := os.WriteFile(path, []byte(header), 0o644); writeErr != nil {
			logrus.Errorf("Error creating subscriber file %s: %v", path, writeErr)
		}
		return nil
	}

	file, err := os.Open(path)
	if err != nil {
		logrus.Errorf("Error loading email list: %v", err)
		return nil
	}
	defer file.Close()

	var emails []string
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if isValidEmail(line) {
			emails = append(emails, strings.ToLower(line))
		} else {
			logrus.Warnf("Invalid email format on line %d: %s", lineNum, line)
		}
	}
	if err := scanner.Err(); err != nil {
		logrus.Errorf("Error reading email list: %v", err)
	}

	logrus.Infof("Loaded %d email addresses from %s", len(emails), path)
	return emails
}

// isValidEmail applies the same minimal check the list format promises:
// an "@" with a "." somewhere after it.
func isValidEmail(address string) bool {
	at := strings.LastIndex(address, "@")
	if at < 0 {
		return false
	}
	return strings.Contains(address[at+1:], ".")
}
