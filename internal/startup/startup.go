package startup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"yt-fetcher/internal/logging"

	"github.com/gorilla/mux"
	"github.com/spf13/viper"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Config holds all application configuration
type Config struct {
	Port        string `mapstructure:"port"`
	MetricsPort string `mapstructure:"metrics_port"`

	DownloadDir string `mapstructure:"download_dir"`
	UploadDir   string `mapstructure:"upload_dir"`

	SessionTTL    time.Duration `mapstructure:"session_ttl"`
	FileTTL       time.Duration `mapstructure:"file_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`

	MaxBatch             int           `mapstructure:"max_batch"`
	MaxDailyDownloads    int           `mapstructure:"max_daily_downloads"`
	MaxConcurrentBatches int           `mapstructure:"max_concurrent_batches"`
	InterJobPause        time.Duration `mapstructure:"inter_job_pause"`
	MaxCookiesSize       int64         `mapstructure:"max_cookies_size"`
	YtdlpPath            string        `mapstructure:"ytdlp_path"`

	LogStaticFiles  bool `mapstructure:"log_static_files"`
	LogHealthChecks bool `mapstructure:"log_health_checks"`
	MetricsEnabled  bool `mapstructure:"metrics_enabled"`

	// Probed at startup, not user-settable.
	FFmpegAvailable bool `mapstructure:"-"`
}

// configDefaults maps every config key to its default value. All keys can
// be overridden from the environment (SESSION_TTL, MAX_BATCH, ...).
var configDefaults = map[string]interface{}{
	"port":                   "8091",
	"metrics_port":           "9090",
	"download_dir":           "./downloads",
	"upload_dir":             "./uploads",
	"session_ttl":            "24h",
	"file_ttl":               "24h",
	"sweep_interval":         "1h",
	"max_batch":              5,
	"max_daily_downloads":    20,
	"max_concurrent_batches": 2,
	"inter_job_pause":        "2s",
	"max_cookies_size":       100 * 1024,
	"ytdlp_path":             "yt-dlp",
	"log_static_files":       false,
	"log_health_checks":      true,
	"metrics_enabled":        true,
}

// LoadConfig loads and validates configuration from the environment
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	for key, def := range configDefaults {
		v.SetDefault(key, def)
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("could not unmarshal config: %w", err)
	}

	logging.Info("  PORT:                    %s", config.Port)
	logging.Info("  METRICS_PORT:            %s", config.MetricsPort)
	logging.Info("  METRICS_ENABLED:         %v", config.MetricsEnabled)
	logging.Info("  DOWNLOAD_DIR:            %s", config.DownloadDir)
	logging.Info("  UPLOAD_DIR:              %s", config.UploadDir)
	logging.Info("  SESSION_TTL:             %s", config.SessionTTL)
	logging.Info("  FILE_TTL:                %s", config.FileTTL)
	logging.Info("  SWEEP_INTERVAL:          %s", config.SweepInterval)
	logging.Info("  MAX_BATCH:               %d", config.MaxBatch)
	logging.Info("  MAX_DAILY_DOWNLOADS:     %d", config.MaxDailyDownloads)
	logging.Info("  MAX_CONCURRENT_BATCHES:  %d", config.MaxConcurrentBatches)
	logging.Info("  INTER_JOB_PAUSE:         %s", config.InterJobPause)
	logging.Info("  MAX_COOKIES_SIZE:        %d", config.MaxCookiesSize)
	logging.Info("  YTDLP_PATH:              %s", config.YtdlpPath)
	logging.Info("  LOG_LEVEL:               %s", logging.GetLevel())

	if err := config.validate(); err != nil {
		return nil, err
	}

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	var err error
	config.DownloadDir, err = filepath.Abs(config.DownloadDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve download directory path: %w", err)
	}
	logging.Info("  Download directory (absolute): %s", config.DownloadDir)

	config.UploadDir, err = filepath.Abs(config.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve upload directory path: %w", err)
	}
	logging.Info("  Upload directory (absolute): %s", config.UploadDir)

	// Both directories must exist and be writable; downloads land in one,
	// cookie jars in the other.
	for _, dir := range []struct{ path, name string }{
		{config.DownloadDir, "download"},
		{config.UploadDir, "upload"},
	} {
		if err := ensureDirectory(dir.path, dir.name); err != nil {
			return nil, fmt.Errorf("%s directory error: %w", dir.name, err)
		}
		if err := testWriteAccess(dir.path); err != nil {
			return nil, fmt.Errorf("%s directory is not writable: %w", dir.name, err)
		}
		logging.Info("  [OK] %s directory is writable", dir.name)
	}

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("TOOL DETECTION")
	logging.Info("------------------------------------------------------------")

	if err := checkTool(config.YtdlpPath); err != nil {
		logging.Warn("  yt-dlp check failed: %v", err)
		logging.Warn("  Downloads will fail until %s is installed", config.YtdlpPath)
	} else {
		logging.Info("  [OK] %s is available", config.YtdlpPath)
	}

	config.FFmpegAvailable = checkTool("ffmpeg") == nil
	if config.FFmpegAvailable {
		logging.Info("  [OK] ffmpeg is available (merged high-quality formats enabled)")
	} else {
		logging.Warn("  ffmpeg not found (falling back to progressive formats)")
	}

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Metrics:        %s", enabledString(config.MetricsEnabled))
	logging.Info("    Merged formats: %s", enabledString(config.FFmpegAvailable))

	return &config, nil
}

func (c *Config) validate() error {
	if c.MaxBatch < 1 {
		return fmt.Errorf("MAX_BATCH must be at least 1, got %d", c.MaxBatch)
	}
	if c.MaxConcurrentBatches < 1 {
		return fmt.Errorf("MAX_CONCURRENT_BATCHES must be at least 1, got %d", c.MaxConcurrentBatches)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	if c.MaxCookiesSize <= 0 {
		return fmt.Errorf("MAX_COOKIES_SIZE must be positive, got %d", c.MaxCookiesSize)
	}
	return nil
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			// Route might not have methods specified (e.g., websocket endpoint)
			methods = []string{"*"}
		}

		name := route.GetName()

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   name,
			})
		}

		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes dynamically
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))

		sort.Slice(routes, func(i, j int) bool { return routes[i].Path < routes[j].Path })
		for _, route := range routes {
			logging.Debug("    %-6s %s", route.Method, route.Path)
		}
	}

	logging.Info("  HTTP logging enabled")
	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Application:   http://0.0.0.0:%s", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
  _  _ _____     ___    _      _
 | || |_   _|___| __|__| |_ __| |_  ___ _ _
  \_, | | |/ ___| _/ -_)  _/ _| ' \/ -_) '_|
  |__/  |_|     |_|\___|\__\__|_||_\___|_|

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		logging.Debug("  Goroutines:      %d", runtime.NumGoroutine())

		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}

		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
		// Write access was confirmed regardless
	}
	return nil
}

func checkTool(name string) error {
	path, err := exec.LookPath(name)
	if err != nil {
		return fmt.Errorf("%s not found in PATH", name)
	}
	logging.Debug("  %s path: %s", name, path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, "--version")
	output, err := cmd.Output()
	if err != nil {
		// ffmpeg reports its version via -version, not --version
		cmd = exec.CommandContext(ctx, name, "-version")
		if output, err = cmd.Output(); err != nil {
			return fmt.Errorf("failed to get %s version: %w", name, err)
		}
	}

	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 {
		logging.Debug("  %s version: %s", name, strings.TrimSpace(lines[0]))
	}

	return nil
}
