package global

import (
	"context"
	"os"

	"HRProject/logger"
	mgoSrv "HRProject/service/mgo"
	"HRProject/service/redisx"
	ids "HRProject/tools/ids"
	security "HRProject/tools/security"
)

var appCfg AppConfig

func ConfigAll(cfgPath string) error {
	cfg, err := LoadConfig(cfgPath)
	if err != nil {
		return err
	}
	appCfg = cfg

	ConfigIds()
	ConfigRedis()
	ConfigMgo()
	return nil
}

func Config() AppConfig {
	return appCfg
}

func ConfigIds() {
	ids.SetNodeID(appCfg.NodeID)
}

// GetJwtSecret: AUTH_SECRET 必须通过环境变量注入
func GetJwtSecret() []byte {
	s := os.Getenv("AUTH_SECRET")
	if s == "" {
		panic("Missing environment variable AUTH_SECRET")
	}
	return []byte(s)
}

// JWTOptions 返回统一的签发/校验参数
func JWTOptions() security.Options {
	opts := security.DefaultOptions(GetJwtSecret())
	opts.TTL = appCfg.TokenTTL()
	return opts
}

func ConfigRedis() {
	err := redisx.InitRedis(redisx.Config{
		Addr:     appCfg.Redis.Addr,
		Password: appCfg.Redis.Password,
		DB:       appCfg.Redis.DB,
		PoolSize: appCfg.Redis.PoolSize,
	})
	if err != nil {
		logger.Errorf("[ConfigRedis] init failed: %v", err)
	}
}

// ConfigMgo 启动后台连接循环；调用方用 mgo.WaitReady 等首连成功
func ConfigMgo() {
	mgoSrv.StartAsync(context.Background(), &mgoSrv.Config{
		Uri:         appCfg.Mongo.Uri,
		Database:    appCfg.Mongo.Database,
		Username:    appCfg.Mongo.Username,
		Password:    appCfg.Mongo.Password,
		AuthSource:  appCfg.Mongo.AuthSource,
		MaxPoolSize: appCfg.Mongo.MaxPoolSize,
	})
}
