package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/weft-ai/weft/pkg/types"
)

// Load merges configuration from every source, later sources winning:
// 1. Global config (~/.config/weft/weft.json[c])
// 2. Project config (weft.json[c], .weft/weft.json[c])
// 3. WEFT_CONFIG file
// 4. WEFT_CONFIG_CONTENT inline JSON
// 5. Environment variables
func Load(directory string) (*types.Config, error) {
	config := &types.Config{
		Agent: make(map[string]types.AgentConfig),
	}

	loaded := make(map[string]bool)
	loadOnce := func(path string, baseDir string) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return
		}
		if loaded[absPath] {
			return
		}
		if loadConfigFile(path, config, baseDir) == nil {
			loaded[absPath] = true
		}
	}

	globalPath := GetPaths().Config
	loadOnce(filepath.Join(globalPath, "weft.json"), globalPath)
	loadOnce(filepath.Join(globalPath, "weft.jsonc"), globalPath)

	if directory != "" {
		projectDir := filepath.Join(directory, ".weft")
		loadOnce(filepath.Join(directory, "weft.json"), directory)
		loadOnce(filepath.Join(directory, "weft.jsonc"), directory)
		loadOnce(filepath.Join(projectDir, "weft.json"), projectDir)
		loadOnce(filepath.Join(projectDir, "weft.jsonc"), projectDir)
	}

	if configPath := os.Getenv("WEFT_CONFIG"); configPath != "" {
		loadOnce(configPath, filepath.Dir(configPath))
	}

	if configContent := os.Getenv("WEFT_CONFIG_CONTENT"); configContent != "" {
		var inline types.Config
		if err := json.Unmarshal(jsonc.ToJSON([]byte(configContent)), &inline); err == nil {
			mergeConfig(config, &inline)
		}
	}

	applyEnvOverrides(config)
	return config, nil
}

// loadConfigFile loads one config file with interpolation support.
func loadConfigFile(path string, config *types.Config, baseDir string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	data = jsonc.ToJSON(data)
	data = interpolate(data, baseDir)

	var fileConfig types.Config
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return err
	}

	mergeConfig(config, &fileConfig)
	return nil
}

var (
	envPattern  = regexp.MustCompile(`\{env:([^}]+)\}`)
	filePattern = regexp.MustCompile(`\{file:([^}]+)\}`)
)

// interpolate resolves {env:VAR} and {file:path} placeholders.
func interpolate(data []byte, baseDir string) []byte {
	str := string(data)

	str = envPattern.ReplaceAllStringFunc(str, func(match string) string {
		varName := envPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})

	str = filePattern.ReplaceAllStringFunc(str, func(match string) string {
		filePath := filePattern.FindStringSubmatch(match)[1]
		if strings.HasPrefix(filePath, "~/") {
			filePath = filepath.Join(os.Getenv("HOME"), filePath[2:])
		} else if !filepath.IsAbs(filePath) {
			filePath = filepath.Join(baseDir, filePath)
		}

		content, err := os.ReadFile(filePath)
		if err != nil {
			return match // keep the placeholder if the file is missing
		}

		escaped := strings.ReplaceAll(strings.TrimRight(string(content), "\n"), "\\", "\\\\")
		escaped = strings.ReplaceAll(escaped, "\"", "\\\"")
		escaped = strings.ReplaceAll(escaped, "\n", "\\n")
		escaped = strings.ReplaceAll(escaped, "\r", "\\r")
		escaped = strings.ReplaceAll(escaped, "\t", "\\t")
		return escaped
	})

	return []byte(str)
}

// mergeConfig merges source into target, source winning where set.
func mergeConfig(target, source *types.Config) {
	if source.Model != "" {
		target.Model = source.Model
	}
	if source.DataDir != "" {
		target.DataDir = source.DataDir
	}
	if source.LogLevel != "" {
		target.LogLevel = source.LogLevel
	}

	if source.Provider.APIKey != "" {
		target.Provider.APIKey = source.Provider.APIKey
	}
	if source.Provider.BaseURL != "" {
		target.Provider.BaseURL = source.Provider.BaseURL
	}
	if source.Provider.MaxTokens != 0 {
		target.Provider.MaxTokens = source.Provider.MaxTokens
	}
	if source.Provider.Temperature != 0 {
		target.Provider.Temperature = source.Provider.Temperature
	}

	if source.Agent != nil {
		if target.Agent == nil {
			target.Agent = make(map[string]types.AgentConfig)
		}
		for name, agent := range source.Agent {
			target.Agent[name] = agent
		}
	}

	if source.Server.Port != 0 {
		target.Server.Port = source.Server.Port
	}
	if source.Server.EnableCORS {
		target.Server.EnableCORS = true
	}
}

// applyEnvOverrides applies environment variables, the highest-priority
// source.
func applyEnvOverrides(config *types.Config) {
	if apiKey := os.Getenv("OPENROUTER_API_KEY"); apiKey != "" && config.Provider.APIKey == "" {
		config.Provider.APIKey = apiKey
	}
	if baseURL := os.Getenv("WEFT_BASE_URL"); baseURL != "" {
		config.Provider.BaseURL = baseURL
	}
	if model := os.Getenv("WEFT_MODEL"); model != "" {
		config.Model = model
	}
	if dataDir := os.Getenv("WEFT_DATA_DIR"); dataDir != "" {
		config.DataDir = dataDir
	}
	if level := os.Getenv("WEFT_LOG_LEVEL"); level != "" {
		config.LogLevel = level
	}
	if port := os.Getenv("WEFT_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			config.Server.Port = n
		}
	}
}

// Save writes the configuration to a file.
func Save(config *types.Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
