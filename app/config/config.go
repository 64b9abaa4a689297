package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

type Config struct {
	Server    HTTPServerConfig
	LLM       LLMConfig
	GitHub    GitHubConfig
	Mongo     MongoConfig
	Workspace WorkspaceConfig

	// SharedSecret authenticates incoming webhook requests.
	SharedSecret string
}

type HTTPServerConfig struct {
	Host         string
	Port         int
	MetricsAddr  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type LLMConfig struct {
	Provider string // openai | gemini
	APIKey   string
	BaseURL  string
	Model    string
	Timeout  time.Duration
}

type GitHubConfig struct {
	Token   string
	Owner   string
	BaseURL string
	Timeout time.Duration
}

type MongoConfig struct {
	URI      string
	Database string
}

type WorkspaceConfig struct {
	Dir string
}

func Default() *Config {
	return &Config{
		Server: HTTPServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			MetricsAddr:  ":2112",
			ReadTimeout:  5 * time.Minute,
			WriteTimeout: 5 * time.Minute,
		},
		LLM: LLMConfig{
			Provider: "openai",
			BaseURL:  "https://api.openai.com/v1/chat/completions",
			Timeout:  5 * time.Minute,
		},
		GitHub: GitHubConfig{
			BaseURL: "https://api.github.com",
			Timeout: 60 * time.Second,
		},
		Mongo: MongoConfig{
			URI:      "mongodb://localhost:27017",
			Database: "pagesmith",
		},
		Workspace: WorkspaceConfig{
			Dir: "./workspace",
		},
	}
}

// fileRoot is the HCL shape of the optional config file. Secrets are not
// accepted from the file, only from the environment.
type fileRoot struct {
	Server    *serverBlock    `hcl:"server,block"`
	LLM       *llmBlock       `hcl:"llm,block"`
	GitHub    *githubBlock    `hcl:"github,block"`
	Mongo     *mongoBlock     `hcl:"mongo,block"`
	Workspace *workspaceBlock `hcl:"workspace,block"`
}

type serverBlock struct {
	Host        string `hcl:"host,optional"`
	Port        int    `hcl:"port,optional"`
	MetricsAddr string `hcl:"metrics_addr,optional"`
}

type llmBlock struct {
	Provider string `hcl:"provider,optional"`
	BaseURL  string `hcl:"base_url,optional"`
	Model    string `hcl:"model,optional"`
}

type githubBlock struct {
	Owner   string `hcl:"owner,optional"`
	BaseURL string `hcl:"base_url,optional"`
}

type mongoBlock struct {
	URI      string `hcl:"uri,optional"`
	Database string `hcl:"database,optional"`
}

type workspaceBlock struct {
	Dir string `hcl:"dir,optional"`
}

// Load builds the effective config: defaults, then the HCL file (when
// path is non-empty), then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return fmt.Errorf("parse config file %s: %s", path, diags.Error())
	}

	var root fileRoot
	diags = gohcl.DecodeBody(file.Body, nil, &root)
	if diags.HasErrors() {
		return fmt.Errorf("decode config file %s: %s", path, diags.Error())
	}

	if root.Server != nil {
		setString(&c.Server.Host, root.Server.Host)
		if root.Server.Port != 0 {
			c.Server.Port = root.Server.Port
		}
		setString(&c.Server.MetricsAddr, root.Server.MetricsAddr)
	}
	if root.LLM != nil {
		setString(&c.LLM.Provider, root.LLM.Provider)
		setString(&c.LLM.BaseURL, root.LLM.BaseURL)
		setString(&c.LLM.Model, root.LLM.Model)
	}
	if root.GitHub != nil {
		setString(&c.GitHub.Owner, root.GitHub.Owner)
		setString(&c.GitHub.BaseURL, root.GitHub.BaseURL)
	}
	if root.Mongo != nil {
		setString(&c.Mongo.URI, root.Mongo.URI)
		setString(&c.Mongo.Database, root.Mongo.Database)
	}
	if root.Workspace != nil {
		setString(&c.Workspace.Dir, root.Workspace.Dir)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Host = getEnv("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnvInt("SERVER_PORT", c.Server.Port)
	c.Server.MetricsAddr = getEnv("METRICS_ADDR", c.Server.MetricsAddr)

	c.LLM.Provider = getEnv("LLM_PROVIDER", c.LLM.Provider)
	c.LLM.APIKey = getEnv("LLM_API_KEY", c.LLM.APIKey)
	c.LLM.BaseURL = getEnv("LLM_BASE_URL", c.LLM.BaseURL)
	c.LLM.Model = getEnv("LLM_MODEL", c.LLM.Model)

	c.GitHub.Token = getEnv("GITHUB_TOKEN", c.GitHub.Token)
	c.GitHub.Owner = getEnv("GITHUB_OWNER", c.GitHub.Owner)
	c.GitHub.BaseURL = getEnv("GITHUB_BASE_URL", c.GitHub.BaseURL)

	c.Mongo.URI = getEnv("MONGO_URI", c.Mongo.URI)
	c.Mongo.Database = getEnv("MONGO_DB", c.Mongo.Database)

	c.Workspace.Dir = getEnv("WORKSPACE_DIR", c.Workspace.Dir)

	c.SharedSecret = getEnv("USER_SECRET", c.SharedSecret)
}

func (c *Config) validate() error {
	if c.SharedSecret == "" {
		return fmt.Errorf("USER_SECRET env variable is required")
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM_API_KEY env variable is required")
	}
	if c.GitHub.Token == "" {
		return fmt.Errorf("GITHUB_TOKEN env variable is required")
	}
	if c.GitHub.Owner == "" {
		return fmt.Errorf("GITHUB_OWNER is required (env or config file)")
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
