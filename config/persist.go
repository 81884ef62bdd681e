package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/promptloom/promptloom/errors"
	"github.com/promptloom/promptloom/logger"
)

// UserConfigPath returns the path of the per-user config file.
func UserConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".promptloom", "config.toml")
}

// createBackup creates rotating backups (.back1, .back2, .back3) before
// modifying a config file.
func createBackup(configPath string) error {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil
	}

	back3 := configPath + ".back3"
	back2 := configPath + ".back2"
	back1 := configPath + ".back1"

	if err := os.Remove(back3); err != nil && !os.IsNotExist(err) {
		logger.Warnw("Failed to delete old config backup",
			"path", back3,
			"error", err)
	}
	if _, err := os.Stat(back2); err == nil {
		if err := os.Rename(back2, back3); err != nil {
			return errors.Wrap(err, "failed to rotate .back2 to .back3")
		}
	}
	if _, err := os.Stat(back1); err == nil {
		if err := os.Rename(back1, back2); err != nil {
			return errors.Wrap(err, "failed to rotate .back1 to .back2")
		}
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return errors.Wrap(err, "failed to read config for backup")
	}
	if err := os.WriteFile(back1, content, 0644); err != nil {
		return errors.Wrap(err, "failed to create .back1")
	}
	return nil
}

// loadOrInitializeUserConfig reads the user config file, or starts an
// empty document when none exists yet.
func loadOrInitializeUserConfig() (map[string]interface{}, string, error) {
	configPath := UserConfigPath()
	if configPath == "" {
		return nil, "", errors.New("could not determine home directory")
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0750); err != nil {
		return nil, "", errors.Wrap(err, "failed to create .promptloom directory")
	}

	var doc map[string]interface{}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, "", errors.Wrap(err, "failed to parse user config")
		}
	} else {
		doc = make(map[string]interface{})
	}
	return doc, configPath, nil
}

// SetValue persists a dot-notation key (e.g. "server.port") to the user
// config file, backing up the previous file. The cached configuration
// is reset so the next Load observes the change.
func SetValue(key string, value interface{}) error {
	doc, configPath, err := loadOrInitializeUserConfig()
	if err != nil {
		return err
	}

	parts := strings.Split(key, ".")
	section := doc
	for _, part := range parts[:len(parts)-1] {
		child, ok := section[part].(map[string]interface{})
		if !ok {
			child = make(map[string]interface{})
			section[part] = child
		}
		section = child
	}
	section[parts[len(parts)-1]] = value

	if err := createBackup(configPath); err != nil {
		return errors.Wrap(err, "failed to create backup")
	}

	data, err := toml.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write user config")
	}

	logger.Infow("Config value saved",
		"key", key,
		"path", configPath)
	Reset()
	return nil
}

// UnsetValue removes a dot-notation key from the user config file.
func UnsetValue(key string) error {
	doc, configPath, err := loadOrInitializeUserConfig()
	if err != nil {
		return err
	}

	parts := strings.Split(key, ".")
	section := doc
	for _, part := range parts[:len(parts)-1] {
		child, ok := section[part].(map[string]interface{})
		if !ok {
			return nil // Nothing to remove
		}
		section = child
	}
	delete(section, parts[len(parts)-1])

	if err := createBackup(configPath); err != nil {
		return errors.Wrap(err, "failed to create backup")
	}

	data, err := toml.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write user config")
	}
	Reset()
	return nil
}
