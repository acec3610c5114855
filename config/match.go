// Package config reads the match file that tells the coordinator which
// guest VM manager, if any, owns this platform's lifecycle bus.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// DefaultMatchPath is where the match file normally lives, mirroring the
// original's hard-coded cbc_match_file.
const DefaultMatchPath = "/run/acrnd/cbc_match.txt"

// vmmTag is the third column value that marks a line as VM-manager-owned.
const vmmTag = "acrn"

// Entry is one line of the match file: a character device to probe, the
// serial tty it's multiplexed over, and a free-form tag naming the owner.
type Entry struct {
	Device string
	TTY    string
	Tag    string
}

// DetectVMM reports whether, in the match file at path, the first line whose
// device exists on disk has a tag beginning with "acrn"; lines after that
// first existing device are not consulted. A
// missing match file, like a match file with no matching line, is not an
// error: it just means no VM manager on this platform, the same as the
// original's check_acrnd returning 0 when it can't open the file.
func DetectVMM(path string) (bool, error) {
	entries, err := ReadMatchFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	for _, e := range entries {
		if unix.Access(e.Device, unix.F_OK) != nil {
			continue
		}
		return strings.HasPrefix(e.Tag, vmmTag), nil
	}
	return false, nil
}

// ReadMatchFile parses every well-formed "device | tty | tag" line of the
// match file at path.
func ReadMatchFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "|")
		if len(fields) != 3 {
			continue
		}
		entries = append(entries, Entry{
			Device: strings.TrimSpace(fields[0]),
			TTY:    strings.TrimSpace(fields[1]),
			Tag:    strings.TrimSpace(fields[2]),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return entries, nil
}
