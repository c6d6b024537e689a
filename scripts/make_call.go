package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/harunnryd/cleanline/pkg/configutil"
	twiliotransport "github.com/harunnryd/cleanline/pkg/transports/twilio"
)

type twilioConfig struct {
	Transports struct {
		Provider string         `mapstructure:"provider"`
		Settings map[string]any `mapstructure:"settings"`
	} `mapstructure:"transports"`
}

func main() {
	configPath := flag.String("config", "configs/cleanline.yaml", "")
	from := flag.String("from", "", "")
	to := flag.String("to", "", "")
	company := flag.String("company", "", "")
	flag.Parse()
	if *from == "" || *to == "" {
		fmt.Println("usage: make_call -from=+123 -to=+456 [-company=Acme] [-config=...]")
		os.Exit(1)
	}
	cfg, err := loadTwilioConfig(*configPath)
	if err != nil {
		fmt.Println("config error:", err)
		os.Exit(1)
	}
	var settings twiliotransport.Config
	if err := configutil.DecodeSettings(cfg.Transports.Settings, &settings); err != nil {
		fmt.Println("settings error:", err)
		os.Exit(1)
	}
	if settings.PublicURL == "" {
		fmt.Println("public_url is empty")
		os.Exit(1)
	}
	dialer := twiliotransport.NewDialer(settings)
	callSID, err := dialer.Dial(context.Background(), *to, *from, *company)
	if err != nil {
		fmt.Println("call error:", err)
		os.Exit(1)
	}
	fmt.Println("call_sid:", callSID)
}

func loadTwilioConfig(path string) (twilioConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return twilioConfig{}, err
	}
	var cfg twilioConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return twilioConfig{}, err
	}
	for k, val := range cfg.Transports.Settings {
		if s, ok := val.(string); ok {
			cfg.Transports.Settings[k] = os.ExpandEnv(s)
		}
	}
	return cfg, nil
}
