// Package config 提供配置管理
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/paiban/mito/pkg/errors"
	"github.com/paiban/mito/pkg/scheduler"
	"github.com/paiban/mito/pkg/scheduler/constraint"
	"github.com/paiban/mito/pkg/scheduler/constraint/builtin"
	"github.com/paiban/mito/pkg/scheduler/optimizer"
)

// Config 应用配置
type Config struct {
	App      AppConfig      `yaml:"app"`
	Database DatabaseConfig `yaml:"database"`
	API      APIConfig      `yaml:"api"`
	Solver   SolverConfig   `yaml:"solver"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name     string `yaml:"name"`
	Env      string `yaml:"env"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// DSN 返回数据库连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// APIConfig API配置
type APIConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	MaxBodySize int64         `yaml:"max_body_size"` // 请求体上限（字节）
	RateLimit   float64       `yaml:"rate_limit"`    // 每秒请求数，0 表示不限流
	APIKeys     []string      `yaml:"api_keys"`      // 为空时不校验
}

// SolverConfig 求解引擎配置
type SolverConfig struct {
	MaxIterations    int           `yaml:"max_iterations"`
	MaxTime          time.Duration `yaml:"max_time"`
	PlateauSteps     int           `yaml:"plateau_steps"` // 0 表示不按平台期停止
	TabuSize         int           `yaml:"tabu_size"`
	NeighborhoodSize int           `yaml:"neighborhood_size"`
	WindowDays       int           `yaml:"window_days"`
	Workers          int           `yaml:"workers"`
	InitialTemp      float64       `yaml:"initial_temp"`
	CoolingRate      float64       `yaml:"cooling_rate"`
	Seed             int64         `yaml:"seed"`
	VerifyScore      bool          `yaml:"verify_score"`

	Weights constraint.Weights `yaml:"weights"`

	// DisabledConstraints 关闭的约束类型，如 floor_occupancy
	DisabledConstraints []string `yaml:"disabled_constraints"`
}

// MetricsConfig 监控配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load 从 .env 文件和环境变量加载配置，已存在的环境变量优先
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrap(err, errors.CodeInvalidInput, "读取环境文件失败: "+f)
		}
	}

	w := constraint.DefaultWeights()
	cfg := &Config{
		App: AppConfig{
			Name:     getEnv("APP_NAME", "mito"),
			Env:      getEnv("APP_ENV", "development"),
			Port:     getEnvInt("APP_PORT", 7012),
			LogLevel: getEnv("APP_LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			Enabled:         getEnvBool("DB_ENABLED", false),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnv("DB_NAME", "mito"),
			User:            getEnv("DB_USER", "mito"),
			Password:        getEnv("DB_PASSWORD", "mito123"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		API: APIConfig{
			Timeout:     getEnvDuration("API_TIMEOUT", 60*time.Second),
			MaxBodySize: int64(getEnvInt("API_MAX_BODY_SIZE", 10<<20)),
			RateLimit:   getEnvFloat("API_RATE_LIMIT", 100),
			APIKeys:     getEnvList("API_KEYS"),
		},
		Solver: SolverConfig{
			MaxIterations:    getEnvInt("SOLVER_MAX_ITERATIONS", 10000),
			MaxTime:          getEnvDuration("SOLVER_MAX_TIME", 30*time.Second),
			PlateauSteps:     getEnvInt("SOLVER_PLATEAU_STEPS", 2000),
			TabuSize:         getEnvInt("SOLVER_TABU_SIZE", 50),
			NeighborhoodSize: getEnvInt("SOLVER_NEIGHBORHOOD_SIZE", 20),
			WindowDays:       getEnvInt("SOLVER_WINDOW_DAYS", 7),
			Workers:          getEnvInt("SOLVER_WORKERS", 1),
			InitialTemp:      getEnvFloat("SOLVER_INITIAL_TEMP", 100),
			CoolingRate:      getEnvFloat("SOLVER_COOLING_RATE", 0.999),
			Seed:             int64(getEnvInt("SOLVER_SEED", 0)),
			VerifyScore:      getEnvBool("SOLVER_VERIFY_SCORE", false),

			DisabledConstraints: getEnvList("SOLVER_DISABLED_CONSTRAINTS"),
			Weights: constraint.Weights{
				RoomCapacity:       getEnvInt("WEIGHT_ROOM_CAPACITY", w.RoomCapacity),
				PersonDoubleBooked: getEnvInt("WEIGHT_PERSON_DOUBLE_BOOKED", w.PersonDoubleBooked),
				EquipmentCapacity:  getEnvInt("WEIGHT_EQUIPMENT_CAPACITY", w.EquipmentCapacity),
				TaskRepeated:       getEnvInt("WEIGHT_TASK_REPEATED", w.TaskRepeated),
				PersonUnavailable:  getEnvInt("WEIGHT_PERSON_UNAVAILABLE", w.PersonUnavailable),
				WeeklyShiftLimit:   getEnvInt("WEIGHT_WEEKLY_SHIFT_LIMIT", w.WeeklyShiftLimit),
				Precedence:         getEnvInt("WEIGHT_PRECEDENCE", w.Precedence),
				FloorOccupancy:     getEnvInt("WEIGHT_FLOOR_OCCUPANCY", w.FloorOccupancy),
				TaskScheduled:      getEnvInt("WEIGHT_TASK_SCHEDULED", w.TaskScheduled),
				DueDateScheduled:   getEnvInt("WEIGHT_DUE_DATE_SCHEDULED", w.DueDateScheduled),
				DueDateMissed:      getEnvInt("WEIGHT_DUE_DATE_MISSED", w.DueDateMissed),
				PiGroupFairness:    getEnvInt("WEIGHT_PI_GROUP_FAIRNESS", w.PiGroupFairness),
				PriorityWork:       getEnvInt("WEIGHT_PRIORITY_WORK", w.PriorityWork),
				FloorMinimum:       getEnvInt("FLOOR_MINIMUM", w.FloorMinimum),
			},
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
	}

	return cfg, nil
}

// Validate 检查配置取值
func (c *Config) Validate() error {
	ve := &errors.ValidationErrors{}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		ve.Add("APP_PORT", "端口必须在 1-65535 之间")
	}
	if c.API.MaxBodySize <= 0 {
		ve.Add("API_MAX_BODY_SIZE", "必须大于 0")
	}
	if c.API.RateLimit < 0 {
		ve.Add("API_RATE_LIMIT", "不能为负数")
	}
	c.Solver.validate(ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func (s *SolverConfig) validate(ve *errors.ValidationErrors) {
	if s.MaxIterations < 0 {
		ve.Add("SOLVER_MAX_ITERATIONS", "不能为负数")
	}
	if s.MaxTime < 0 {
		ve.Add("SOLVER_MAX_TIME", "不能为负数")
	}
	if s.MaxIterations == 0 && s.MaxTime == 0 && s.PlateauSteps == 0 {
		ve.Add("SOLVER_MAX_ITERATIONS", "至少需要一个终止条件")
	}
	if s.NeighborhoodSize <= 0 {
		ve.Add("SOLVER_NEIGHBORHOOD_SIZE", "必须大于 0")
	}
	if s.TabuSize < 0 {
		ve.Add("SOLVER_TABU_SIZE", "不能为负数")
	}
	if s.WindowDays < 0 {
		ve.Add("SOLVER_WINDOW_DAYS", "不能为负数")
	}
	if s.Workers < 1 {
		ve.Add("SOLVER_WORKERS", "至少为 1")
	}
	if s.InitialTemp < 0 {
		ve.Add("SOLVER_INITIAL_TEMP", "不能为负数")
	}
	if s.CoolingRate <= 0 || s.CoolingRate > 1 {
		ve.Add("SOLVER_COOLING_RATE", "必须在 (0, 1] 之间")
	}
	if s.Weights.FloorMinimum < 0 {
		ve.Add("FLOOR_MINIMUM", "不能为负数")
	}
	for _, name := range s.DisabledConstraints {
		if !builtin.IsBuiltin(constraint.Type(name)) {
			ve.Add("SOLVER_DISABLED_CONSTRAINTS", fmt.Sprintf("未知约束类型: %s", name))
		}
	}
}

// SchedulerConfig 转换为求解引擎配置
func (s *SolverConfig) SchedulerConfig() scheduler.Config {
	opt := optimizer.DefaultOptConfig()
	opt.MaxIterations = s.MaxIterations
	opt.MaxTime = s.MaxTime
	opt.StopOnPlateau = s.PlateauSteps > 0
	opt.PlateauThreshold = s.PlateauSteps
	opt.TabuSize = s.TabuSize
	opt.NeighborhoodSize = s.NeighborhoodSize
	opt.WindowDays = s.WindowDays
	opt.ParallelWorkers = s.Workers
	opt.InitialTemp = s.InitialTemp
	opt.CoolingRate = s.CoolingRate
	opt.Seed = s.Seed
	opt.VerifyScore = s.VerifyScore

	disabled := make([]constraint.Type, 0, len(s.DisabledConstraints))
	for _, name := range s.DisabledConstraints {
		disabled = append(disabled, constraint.Type(name))
	}
	return scheduler.Config{
		Weights:      s.Weights,
		Optimization: opt,
		Disabled:     disabled,
	}
}

// IsDevelopment 检查是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction 检查是否为生产环境
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// IsTest 检查是否为测试环境
func (c *Config) IsTest() bool {
	return c.App.Env == "test"
}

// 辅助函数
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList 读取逗号分隔的列表，忽略空项
func getEnvList(key string) []string {
	var list []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	return list
}
