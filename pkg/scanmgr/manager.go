package scanmgr

import (
	"fmt"

	"github.com/joho/godotenv"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/verityscan/bucketsum/pkg/audit"
	"github.com/verityscan/bucketsum/pkg/wasabi"
)

// ConfigurationError reports a required option that is missing or invalid.
// It always surfaces before any provider traffic starts.
type ConfigurationError struct {
	Option string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration option %q: %s", e.Option, e.Reason)
}

type ScanManager struct {
	Store    audit.ObjectStore
	Classify audit.Classifier
	Logger   logrus.FieldLogger
	Cfg      *viper.Viper
}

func NewManager(userCfg map[string]interface{}) (*ScanManager, error) {
	var err error
	mgr := &ScanManager{}

	if cfgPathRaw, ok := userCfg["config-file"]; ok {
		if cfgPath, ok := cfgPathRaw.(string); ok {
			err = mgr.initConfig(&cfgPath)
		} else {
			return nil, errors.New("option 'config-file' must be of type string")
		}
	} else {
		err = mgr.initConfig(nil)
	}
	if err != nil {
		return nil, err
	}

	if loggerRaw, ok := userCfg["logger"]; ok {
		if logger, ok := loggerRaw.(logrus.FieldLogger); ok {
			mgr.Logger = logger
		} else {
			return nil, errors.New("option 'logger' must satisfy logrus.FieldLogger")
		}
	} else {
		mgr.Logger = logrus.New()
	}

	if err = mgr.initStore(); err != nil {
		return nil, err
	}

	return mgr, nil
}

func (self *ScanManager) initConfig(cfgPath *string) error {
	// Credentials normally come from the environment; a .env file in the
	// working directory is honored the same way the deployment scripts do it.
	godotenv.Load()

	// This is a private viper context just for bucketsum (so as not to
	// conflict with the importer's usage).
	self.Cfg = viper.New()

	self.Cfg.SetDefault("endpoint", "https://s3.us-east-2.wasabisys.com")
	self.Cfg.SetDefault("region", "us-east-1")

	// Admission defaults sized for Wasabi's 1000-GETs-per-minute budget.
	self.Cfg.SetDefault("requestsPerSec", 16)
	self.Cfg.SetDefault("maxInflight", 0)

	self.Cfg.SetDefault("workers", audit.DefaultWorkers)
	self.Cfg.SetDefault("maxRetries", audit.DefaultMaxAttempts)
	self.Cfg.SetDefault("baseBackoffMs", 1000)
	self.Cfg.SetDefault("maxBackoffMs", 16000)

	// Sidecar and index artifacts the archive pipeline writes next to media.
	self.Cfg.SetDefault("skipExtensions", []string{".pfk", ".pek", ".cfa", ".mpegindex"})

	// Order of precedence: ENV, bucketsum.yaml, defaults
	self.Cfg.BindEnv("bucket", "WASABI_BUCKET_NAME")
	self.Cfg.BindEnv("endpoint", "WASABI_ENDPOINT_URL")
	self.Cfg.BindEnv("accessKey", "WASABI_ACCESS_KEY")
	self.Cfg.BindEnv("secretKey", "WASABI_SECRET_KEY")

	if cfgPath != nil {
		// Use config file from the flag.
		self.Cfg.SetConfigFile(*cfgPath)
	} else {
		// default search path is ./configs/bucketsum.* then $HOME/.bucketsum.*
		self.Cfg.AddConfigPath("./configs")
		if home, err := homedir.Dir(); err == nil {
			self.Cfg.AddConfigPath(home)
		}
		self.Cfg.SetConfigName("bucketsum")
	}

	if err := self.Cfg.ReadInConfig(); err != nil {
		if cfgPath != nil {
			return errors.Wrap(err, "Failed to load config")
		}
		// With no explicit flag a config file is optional, as long as the
		// environment carries the bucket identity and credentials.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return errors.Wrap(err, "Failed to load config")
		}
	}
	return nil
}

func (self *ScanManager) initStore() error {
	bucket := self.Cfg.GetString("bucket")
	if bucket == "" {
		return &ConfigurationError{Option: "bucket", Reason: "no bucket configured (set WASABI_BUCKET_NAME or the 'bucket' option)"}
	}

	accessKey := self.Cfg.GetString("accessKey")
	secretKey := self.Cfg.GetString("secretKey")
	if (accessKey == "") != (secretKey == "") {
		return &ConfigurationError{Option: "accessKey", Reason: "access key and secret key must be set together"}
	}

	store, err := wasabi.NewClient(self.Logger.WithField("module", "wasabi"), wasabi.Config{
		Bucket:    bucket,
		Endpoint:  self.Cfg.GetString("endpoint"),
		Region:    self.Cfg.GetString("region"),
		AccessKey: accessKey,
		SecretKey: secretKey,
	})
	if err != nil {
		return errors.Wrap(err, "Failed to initialize object store")
	}

	self.Store = store
	self.Classify = wasabi.Classify
	return nil
}
