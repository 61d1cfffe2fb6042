package cli

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/pflag"

	"github.com/iglennon-qualys/ResetAssetGroups/pkg/audit"
	"github.com/iglennon-qualys/ResetAssetGroups/pkg/config"
	"github.com/iglennon-qualys/ResetAssetGroups/pkg/logging"
	"github.com/iglennon-qualys/ResetAssetGroups/pkg/metrics"
	"github.com/iglennon-qualys/ResetAssetGroups/pkg/qualys"
	"github.com/iglennon-qualys/ResetAssetGroups/pkg/remediate"
	"github.com/iglennon-qualys/ResetAssetGroups/pkg/report"
	"github.com/iglennon-qualys/ResetAssetGroups/pkg/scheduler"
)

func execute(ctx context.Context, fs *pflag.FlagSet, f *flags, deps Deps) error {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return usageError("ERROR: %v", err)
	}
	cfg.ApplyEnv(deps.LookupEnv)
	f.merge(fs, cfg)

	target, err := validate(cfg)
	if err != nil {
		return err
	}
	password, err := resolvePassword(cfg.Qualys, deps.ReadPassword)
	if err != nil {
		return err
	}

	level := logging.ParseLevel(cfg.Logging.Level)
	logger := logging.NewWriter(deps.Stderr, level, cfg.Logging.Format)
	if cfg.Logging.Path != "" {
		logger, err = logging.New(cfg.Logging.Path, level, cfg.Logging.Format)
		if err != nil {
			return usageError("ERROR: %v", err)
		}
		defer logger.Close()
	}

	proxyURL := ""
	if cfg.Qualys.ProxyEnable {
		proxyURL = cfg.Qualys.ProxyURL
	}
	session, err := qualys.NewSession(qualys.Options{
		BaseURL:     cfg.Qualys.APIURL,
		Credentials: qualys.Credentials{Username: cfg.Qualys.User, Password: password},
		ProxyURL:    proxyURL,
		Debug:       cfg.Qualys.Debug,
		DebugOut:    deps.Stdout,
		HTTPClient:  deps.HTTPClient,
		Logger:      logger,
	})
	if err != nil {
		return usageError("ERROR: %v", err)
	}

	a := &app{cfg: cfg, log: logger, apiURL: session.BaseURL()}
	var observers []remediate.Observer

	if url := cfg.Audit.DatabaseURL; url != "" {
		store, err := audit.Open(ctx, url)
		if err != nil {
			return usageError("ERROR: %v", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return usageError("ERROR: audit schema: %v", err)
		}
		observers = append(observers, store)
	}
	if cfg.Metrics.Textfile != "" {
		a.metrics = metrics.New()
		observers = append(observers, a.metrics)
	}
	if cfg.Report.S3.Enabled() {
		a.uploader, err = report.NewUploader(cfg.Report.S3)
		if err != nil {
			return usageError("ERROR: %v", err)
		}
	}

	a.runner = remediate.NewRunner(session, remediate.Options{
		Target:          target,
		Simulate:        cfg.Remediation.Simulate,
		ContinueOnError: cfg.Remediation.ContinueOnError,
		Debug:           cfg.Qualys.Debug,
		Out:             deps.Stdout,
		Logger:          logger,
		Observers:       observers,
	})
	if cfg.Remediation.Simulate {
		logger.Infof("simulation mode: no asset group will be modified")
	}

	if cfg.Scheduler.Enabled {
		if err := scheduler.New(cfg.Scheduler, scheduler.RunnerFunc(a.runOnce), logger).Start(ctx); err != nil {
			return usageError("ERROR: %v", err)
		}
		return nil
	}
	if err := a.runOnce(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return &ExitError{Code: ExitUsage, Message: "ERROR: interrupted"}
		}
		return &ExitError{Code: qualys.ExitCode(err), Message: err.Error()}
	}
	return nil
}

type app struct {
	cfg      *config.Config
	log      *logging.Logger
	apiURL   string
	runner   *remediate.Runner
	metrics  *metrics.Recorder
	uploader *report.Uploader
}

// runOnce performs one remediation run and publishes its results. Publishing
// failures are logged; the run's own error is returned.
func (a *app) runOnce(ctx context.Context) error {
	res, runErr := a.runner.Run(ctx)

	if a.metrics != nil {
		a.metrics.RunFinished(res, runErr)
		if err := a.metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
			a.log.Errorf("write metrics textfile: %v", err)
		}
	}

	summary := report.FromResult(res, a.apiURL, runErr)
	if path := a.cfg.Report.Path; path != "" {
		if err := report.WriteFile(path, summary); err != nil {
			a.log.Errorf("write report: %v", err)
		} else {
			a.log.Infof("report written to %s", path)
		}
	}
	if a.uploader != nil {
		uploadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
		key, err := a.uploader.Upload(uploadCtx, summary)
		cancel()
		if err != nil {
			a.log.Errorf("%v", err)
		} else {
			a.log.Infof("report uploaded to s3://%s/%s", a.cfg.Report.S3.Bucket, key)
		}
	}
	return runErr
}
