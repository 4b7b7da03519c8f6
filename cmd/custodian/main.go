// Command custodian runs the dead-man's-switch custody server: it opens
// the durable store, sets up (or loads a cached copy of) the VDF public
// parameters, and serves the testator and beneficiary endpoints until a
// signal asks it to stop.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/dedis/onet/cfgpath"
	"github.com/dedis/onet/log"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/zengo-x/custodian/internal/config"
	"github.com/zengo-x/custodian/internal/custody"
	"github.com/zengo-x/custodian/internal/facade"
	"github.com/zengo-x/custodian/internal/group"
	"github.com/zengo-x/custodian/internal/store"
	"github.com/zengo-x/custodian/internal/vdf"
)

var cliApp = cli.NewApp()

func init() {
	cliApp.Name = "custodian"
	cliApp.Usage = "dead-man's-switch custody service for a two-party threshold secret"
	cliApp.Version = "0.1"
	cliApp.Flags = []cli.Flag{
		cli.StringFlag{Name: "store", Usage: "path to the persistent store directory"},
		cli.Uint64Flag{Name: "t", Usage: "VDF difficulty parameter"},
		cli.StringFlag{Name: "cert", Usage: "server identity certificate (PEM)"},
		cli.StringFlag{Name: "key", Usage: "server identity private key (PEM)"},
		cli.StringFlag{Name: "testator-ca", Usage: "CA certificate testator client certs must chain to"},
		cli.BoolFlag{Name: "insecure", Usage: "disable TLS on both endpoints (development only)"},
		cli.StringFlag{Name: "vdf-params", Usage: "path to cache the generated VDF public parameters"},
		cli.IntFlag{Name: "beneficiary-api-port", Value: config.DefaultBeneficiaryPort, Usage: "beneficiary endpoint port"},
		cli.IntFlag{Name: "testator-api-port", Value: config.DefaultTestatorPort, Usage: "testator endpoint port"},
		cli.StringFlag{
			Name:  "config, c",
			Value: filepath.Join(cfgpath.GetDataPath("custodian"), "config.toml"),
			Usage: "optional TOML config file overlaying unset flags",
		},
		cli.IntFlag{Name: "debug, d", Value: 1, Usage: "debug-level: 1 for terse, 5 for maximal"},
	}
	cliApp.Action = run
}

func main() {
	if err := cliApp.Run(os.Args); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	log.SetDebugVisible(c.Int("debug"))

	cfg, err := resolveConfig(c)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	if err := cfg.Validate(); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	st, err := store.Open(filepath.Join(cfg.StorePath, "custody.db"))
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("open persistent store: %v", err), 1)
	}
	defer st.Close()

	params, err := vdf.SetupOrLoad(cfg.Difficulty, cfg.VDFParamsPath)
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("VDF setup: %v", err), 1)
	}

	suite := group.NewP256()
	engine := custody.New(suite, st, params)

	testatorLn, beneficiaryLn, err := listen(cfg)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	if cfg.Insecure {
		fmt.Fprintln(os.Stderr, "WARNING: running in insecure mode, TLS is disabled on both endpoints")
	}

	f := facade.New(engine, testatorLn, beneficiaryLn, cfg.Insecure)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "execution terminated by signal")
		cancel()
	}()

	log.Info("custodian started, beneficiary port", cfg.BeneficiaryPort, "testator port", cfg.TestatorPort)
	return f.Serve(ctx)
}

func resolveConfig(c *cli.Context) (config.Config, error) {
	cliCfg := config.Config{
		StorePath:       c.String("store"),
		Difficulty:      c.Uint64("t"),
		CertPath:        c.String("cert"),
		KeyPath:         c.String("key"),
		TestatorCAPath:  c.String("testator-ca"),
		Insecure:        c.Bool("insecure"),
		VDFParamsPath:   c.String("vdf-params"),
		BeneficiaryPort: c.Int("beneficiary-api-port"),
		TestatorPort:    c.Int("testator-api-port"),
	}

	if path := c.String("config"); path != "" {
		overlay, err := config.LoadOverlay(path)
		switch {
		case err == nil:
			cliCfg = config.Merge(cliCfg, overlay)
		case os.IsNotExist(err) && !c.IsSet("config"):
			// No overlay at the cfgpath default and the user didn't ask
			// for one explicitly — flags alone are enough.
		default:
			return config.Config{}, fmt.Errorf("read config overlay: %w", err)
		}
	}

	cliCfg = cliCfg.ApplyDefaults()
	if cliCfg.StorePath == "" {
		return config.Config{}, fmt.Errorf("--store is required")
	}
	if cliCfg.Difficulty == 0 {
		return config.Config{}, fmt.Errorf("--t is required")
	}
	return cliCfg, nil
}

// listen builds the testator and beneficiary listeners per cfg's TLS
// policy: mTLS (testator) / server-auth TLS (beneficiary), or plain TCP
// if cfg.Insecure.
func listen(cfg config.Config) (testator net.Listener, beneficiary net.Listener, err error) {
	testatorAddr := net.JoinHostPort("0.0.0.0", strconv.Itoa(cfg.TestatorPort))
	beneficiaryAddr := net.JoinHostPort("0.0.0.0", strconv.Itoa(cfg.BeneficiaryPort))

	if cfg.Insecure {
		testator, err = net.Listen("tcp", testatorAddr)
		if err != nil {
			return nil, nil, fmt.Errorf("bind testator port: %w", err)
		}
		beneficiary, err = net.Listen("tcp", beneficiaryAddr)
		if err != nil {
			testator.Close()
			return nil, nil, fmt.Errorf("bind beneficiary port: %w", err)
		}
		return testator, beneficiary, nil
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertPath, cfg.KeyPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load server identity: %w", err)
	}
	testatorCAPEM, err := os.ReadFile(cfg.TestatorCAPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read testator CA: %w", err)
	}
	testatorCAPool := x509.NewCertPool()
	if !testatorCAPool.AppendCertsFromPEM(testatorCAPEM) {
		return nil, nil, fmt.Errorf("parse testator CA: invalid PEM")
	}

	beneficiary, err = tls.Listen("tcp", beneficiaryAddr, &tls.Config{
		Certificates: []tls.Certificate{cert},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("bind beneficiary port: %w", err)
	}

	testator, err = tls.Listen("tcp", testatorAddr, &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientCAs:    testatorCAPool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
	})
	if err != nil {
		beneficiary.Close()
		return nil, nil, fmt.Errorf("bind testator port: %w", err)
	}

	return testator, beneficiary, nil
}
