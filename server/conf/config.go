package conf

import (
	"os"
	"path/filepath"

	"github.com/zhukovaskychina/xbtree/logger"

	"gopkg.in/ini.v1"
)

var ConfigPath string

type CommandLineArgs struct {
	ConfigPath string
}

/*
*
data_dir         = data
buffer_pool_pages = 1024
log_error        = logs/error.log
log_infos        = logs/xbtree.log
log_level        = info
relation_size    = 5000
*/
type Cfg struct {
	Raw *ini.File

	// storage
	DataDir         string `default:"data" yaml:"data_dir" json:"data_dir,omitempty"`
	BufferPoolPages int    `default:"1024" yaml:"buffer_pool_pages" json:"buffer_pool_pages,omitempty"`

	// logs
	LogError string `default:"" yaml:"log_error" json:"log_error,omitempty"`
	LogInfos string `default:"" yaml:"log_infos" json:"log_infos,omitempty"`
	LogLevel string `default:"info" yaml:"log_level" json:"log_level,omitempty"`

	// demo
	RelationSize int `default:"5000" yaml:"relation_size" json:"relation_size,omitempty"`
}

func NewCfg() *Cfg {
	return &Cfg{
		Raw:             ini.Empty(),
		DataDir:         "data",
		BufferPoolPages: 1024,
		LogError:        "",
		LogInfos:        "",
		LogLevel:        "info",
		RelationSize:    5000,
	}
}

func (cfg *Cfg) Load(args *CommandLineArgs) *Cfg {
	setHomePath(args)

	parsedFile, err := cfg.loadConfiguration(args)
	if err != nil {
		logger.Errorf("加载配置失败: %v", err)
		os.Exit(1)
	}
	cfg.Raw = parsedFile

	if section, err := parsedFile.GetSection("storage"); err == nil {
		cfg.parseStorageCfg(section)
	}
	if section, err := parsedFile.GetSection("logs"); err == nil {
		cfg.parseLogsCfg(section)
	}
	if section, err := parsedFile.GetSection("demo"); err == nil {
		cfg.parseDemoCfg(section)
	}

	return cfg
}

func setHomePath(args *CommandLineArgs) {
	if args.ConfigPath != "" {
		ConfigPath = args.ConfigPath
		return
	}

	ConfigPath, _ = filepath.Abs(".")
}

func (cfg *Cfg) loadConfiguration(args *CommandLineArgs) (*ini.File, error) {
	configFile := "conf/xbtree.ini"
	if args.ConfigPath != "" {
		configFile = args.ConfigPath
	}

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		logger.Debugf("配置文件不存在: %s，使用默认配置", configFile)
		return ini.Empty(), nil
	}

	parsedFile, err := ini.Load(configFile)
	if err != nil {
		logger.Debugf("解析配置文件失败: %v，使用默认配置", err)
		return ini.Empty(), nil
	}

	logger.Debugf("成功加载配置文件: %s", configFile)
	return parsedFile, nil
}

func (cfg *Cfg) parseStorageCfg(section *ini.Section) *Cfg {
	cfg.DataDir = section.Key("data_dir").MustString(cfg.DataDir)
	cfg.BufferPoolPages = section.Key("buffer_pool_pages").MustInt(cfg.BufferPoolPages)
	if cfg.BufferPoolPages <= 0 {
		logger.Warnf("buffer_pool_pages=%d 非法，回退默认值1024", cfg.BufferPoolPages)
		cfg.BufferPoolPages = 1024
	}
	return cfg
}

func (cfg *Cfg) parseLogsCfg(section *ini.Section) *Cfg {
	cfg.LogError = section.Key("log_error").MustString(cfg.LogError)
	cfg.LogInfos = section.Key("log_infos").MustString(cfg.LogInfos)
	cfg.LogLevel = section.Key("log_level").MustString(cfg.LogLevel)
	return cfg
}

func (cfg *Cfg) parseDemoCfg(section *ini.Section) *Cfg {
	cfg.RelationSize = section.Key("relation_size").MustInt(cfg.RelationSize)
	return cfg
}
