package cmd

import (
	"errors"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"gooze.dev/pkg/grafter/internal/domain/faultloc"
)

const (
	configVersionKey     = "version"
	currentConfigVersion = 1

	configBaseName   = "grafter"
	configFileName   = configBaseName + ".yaml"
	configFolderPath = "."

	generationsFlagName  = "generations"
	populationFlagName   = "population"
	seedFlagName         = "seed"
	formulaFlagName      = "formula"
	runParallelFlagName  = "parallel"
	timeoutFlagName      = "timeout"
	buildTimeoutFlagName = "build-timeout"
	storePathFlagName    = "db"
	metricsAddrFlagName  = "metrics-addr"
	verboseFlagName      = "verbose"
	logFileFlagName      = "log-file"

	generationsConfigKey  = "repair.generations"
	populationConfigKey   = "repair.population"
	seedConfigKey         = "repair.seed"
	formulaConfigKey      = "repair.formula"
	runParallelConfigKey  = "run.parallel"
	timeoutConfigKey      = "run.timeout"
	buildTimeoutConfigKey = "run.build_timeout"
	storePathConfigKey    = "store.path"
	journalDirConfigKey   = "store.journal_dir"
	metricsAddrConfigKey  = "metrics.addr"

	defaultGenerations  = 10
	defaultPopulation   = 0
	defaultSeed         = -1
	defaultFormula      = string(faultloc.Jaccard)
	defaultRunParallel  = 1
	defaultTimeout      = time.Second
	defaultBuildTimeout = time.Minute
	defaultStorePath    = ".grafter/runs.db"
	defaultJournalDir   = ""
	defaultMetricsAddr  = ""

	envPrefix = "GRAFTER"

	logFilenameKey   = "log.filename"
	logLevelKey      = "log.level"
	logVerboseKey    = "log.verbose"
	logMaxSizeKey    = "log.max_size"
	logMaxBackupsKey = "log.max_backups"
	logMaxAgeKey     = "log.max_age"
	logCompressKey   = "log.compress"

	defaultLogFilename   = ".grafter.log"
	defaultLogLevel      = int(slog.LevelInfo)
	defaultLogVerbose    = false
	defaultLogMaxSize    = 10
	defaultLogMaxBackups = 3
	defaultLogMaxAge     = 28
	defaultLogCompress   = true
)

var globalLogger *slog.Logger

func init() {
	viper.SetConfigName(configBaseName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configFolderPath)
	viper.SetConfigFile(filepath.Join(configFolderPath, configFileName))
	viper.AutomaticEnv()
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.SetDefault(configVersionKey, currentConfigVersion)
	viper.SetDefault(generationsConfigKey, defaultGenerations)
	viper.SetDefault(populationConfigKey, defaultPopulation)
	viper.SetDefault(seedConfigKey, defaultSeed)
	viper.SetDefault(formulaConfigKey, defaultFormula)
	viper.SetDefault(runParallelConfigKey, defaultRunParallel)
	viper.SetDefault(timeoutConfigKey, int64(defaultTimeout.Seconds()))
	viper.SetDefault(buildTimeoutConfigKey, int64(defaultBuildTimeout.Seconds()))
	viper.SetDefault(storePathConfigKey, defaultStorePath)
	viper.SetDefault(journalDirConfigKey, defaultJournalDir)
	viper.SetDefault(metricsAddrConfigKey, defaultMetricsAddr)

	// Logging defaults (used by config/env and as fallbacks for flags).
	viper.SetDefault(logFilenameKey, defaultLogFilename)
	viper.SetDefault(logLevelKey, defaultLogLevel)
	viper.SetDefault(logVerboseKey, defaultLogVerbose)
	viper.SetDefault(logMaxSizeKey, defaultLogMaxSize)
	viper.SetDefault(logMaxBackupsKey, defaultLogMaxBackups)
	viper.SetDefault(logMaxAgeKey, defaultLogMaxAge)
	viper.SetDefault(logCompressKey, defaultLogCompress)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return
		}

		return
	}
}

// seconds reads a duration key stored as whole seconds.
func seconds(key string) time.Duration {
	return time.Duration(viper.GetInt64(key)) * time.Second
}

func parseSlogLevel(value string, defaultLevel slog.Level) slog.Level {
	level := strings.ToLower(strings.TrimSpace(value))
	if level == "" {
		return defaultLevel
	}

	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}

	// Allow numeric slog levels as well (e.g. -4 for debug).
	if n, err := strconv.Atoi(level); err == nil {
		return slog.Level(n)
	}

	return defaultLevel
}

// configureLogger configures the global slog logger.
//
// By default it logs at Info; if verbose is true it logs at Debug.
func configureLogger(logPath string, verbose bool) {
	if strings.TrimSpace(logPath) == "" {
		logPath = viper.GetString(logFilenameKey)
	}

	if strings.TrimSpace(logPath) == "" {
		logPath = defaultLogFilename
	}

	var logLevel slog.Level
	if verbose || viper.GetBool(logVerboseKey) {
		logLevel = slog.LevelDebug
	} else {
		logLevel = parseSlogLevel(viper.GetString(logLevelKey), slog.LevelInfo)
	}

	logWriter := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    viper.GetInt(logMaxSizeKey),
		MaxBackups: viper.GetInt(logMaxBackupsKey),
		MaxAge:     viper.GetInt(logMaxAgeKey),
		Compress:   viper.GetBool(logCompressKey),
	}

	handler := slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		AddSource: true,
		Level:     logLevel,
	})

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)
}
