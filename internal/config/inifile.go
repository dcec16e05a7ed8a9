package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ZoneConfig is the per-zone settings file external gameplay modules
// read through the Config.GetStr/GetInt/GetFloat accessor contract
// (SPEC_FULL.md Ambient Stack "Configuration"; spec.md §1 Non-goals
// excludes hot-reload and the file format's own evolution, not this
// accessor surface). Supports `#include other.conf`, `;`/`#` comments
// and `[section]` / `key = value` lines.
type ZoneConfig struct {
	sections map[string]map[string]string
}

// LoadZoneConfig parses path and every file it transitively includes.
func LoadZoneConfig(path string) (*ZoneConfig, error) {
	c := &ZoneConfig{sections: make(map[string]map[string]string)}
	if err := c.load(path, make(map[string]bool)); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *ZoneConfig) load(path string, seen map[string]bool) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}
	if seen[abs] {
		return fmt.Errorf("circular #include of %s", path)
	}
	seen[abs] = true

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	section := ""
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			if strings.HasPrefix(line, "#include") {
				rel := strings.TrimSpace(strings.TrimPrefix(line, "#include"))
				includePath := filepath.Join(filepath.Dir(path), rel)
				if err := c.load(includePath, seen); err != nil {
					return err
				}
			}
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.TrimSpace(line[1 : len(line)-1])
			if _, ok := c.sections[section]; !ok {
				c.sections[section] = make(map[string]string)
			}
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		if section == "" {
			continue
		}
		c.sections[section][strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return nil
}

// GetStr returns the string value at section/key, or def if unset.
func (c *ZoneConfig) GetStr(section, key, def string) string {
	if s, ok := c.sections[section]; ok {
		if v, ok := s[key]; ok {
			return v
		}
	}
	return def
}

// GetInt returns the int value at section/key, or def if unset or
// unparsable.
func (c *ZoneConfig) GetInt(section, key string, def int) int {
	raw, ok := c.raw(section, key)
	if !ok {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

// GetFloat returns the float64 value at section/key, or def if unset or
// unparsable.
func (c *ZoneConfig) GetFloat(section, key string, def float64) float64 {
	raw, ok := c.raw(section, key)
	if !ok {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return v
}

func (c *ZoneConfig) raw(section, key string) (string, bool) {
	s, ok := c.sections[section]
	if !ok {
		return "", false
	}
	v, ok := s[key]
	return v, ok
}
