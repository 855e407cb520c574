/*
 * Cherry - An OpenFlow Controller
 *
 * Copyright (C) 2015 Samjung Data Service, Inc. All rights reserved.
 * Kitae Kim <superkkt@sds.co.kr>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; either version 2 of the License, or
 * any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License along
 * with this program; if not, write to the Free Software Foundation, Inc.,
 * 51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/superkkt/forwarder/api"
	"github.com/superkkt/forwarder/api/core"
	"github.com/superkkt/forwarder/forwarding"
	"github.com/superkkt/forwarder/log"
	"github.com/superkkt/forwarder/network"

	"github.com/op/go-logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"
)

const (
	programName     = "forwarder"
	programVersion  = "0.1.0"
	defaultLogLevel = logging.INFO
)

var (
	logger            = logging.MustGetLogger("main")
	loggerLeveled     logging.LeveledBackend
	showVersion       = flag.Bool("version", false, "Show program version and exit")
	defaultConfigFile = flag.String("config", fmt.Sprintf("/usr/local/etc/%v.yaml", programName), "absolute path of the configuration file")
)

func main() {
	runtime.GOMAXPROCS(runtime.NumCPU())
	flag.Parse()
	if *showVersion {
		fmt.Printf("Version: %v\n", programVersion)
		os.Exit(0)
	}

	initConfig()
	if err := initLog(getLogLevel(viper.GetString("default.log_level"))); err != nil {
		logger.Fatalf("failed to init log: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	controller, installer := initController()
	go controller.Run(ctx)
	initAPIServer(ctx, controller, installer)
	initSignalHandler(controller, cancel)

	listen(ctx, viper.GetInt("default.port"), controller)
}

func initController() (*network.Controller, *forwarding.Installer) {
	conf, err := controllerConfig()
	if err != nil {
		logger.Fatalf("invalid network configuration: %v", err)
	}
	controller, err := network.NewController(conf)
	if err != nil {
		logger.Fatalf("failed to create the controller: %v", err)
	}

	installer, err := forwarding.NewInstaller(installerConfig(controller.Topology()))
	if err != nil {
		logger.Fatalf("failed to create the path installer: %v", err)
	}
	engine, err := forwarding.NewEngine(forwarding.Config{
		Devices:     controller.Hosts(),
		Topology:    controller.Topology(),
		Routes:      controller.Topology(),
		Installer:   installer,
		FlowRemoved: viper.GetBool("forwarding.flow_removed"),
		FloodRate:   uint(viper.GetInt("forwarding.flood_rate")),
	})
	if err != nil {
		logger.Fatalf("failed to create the forwarding engine: %v", err)
	}
	controller.SetPacketInListener(engine)

	if err := forwarding.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
		logger.Fatalf("failed to register the metrics: %v", err)
	}

	return controller, installer
}

func initAPIServer(ctx context.Context, controller *network.Controller, installer *forwarding.Installer) {
	go func() {
		conf := api.Server{}
		conf.Port = uint16(viper.GetInt("rest.port"))
		if viper.GetBool("rest.tls") {
			conf.TLS.Cert = viper.GetString("rest.cert_file")
			conf.TLS.Key = viper.GetString("rest.key_file")
		}
		conf.Controller = controller
		conf.Metrics = promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{})

		srv := &core.API{
			Server:    conf,
			Topology:  controller.Topology(),
			Hosts:     controller.Hosts(),
			FlowCache: installer,
		}
		if err := srv.Serve(ctx); err != nil {
			logger.Fatalf("failed to run the API server: %v", err)
		}
		logger.Debug("API server terminated")
	}()
}

func initSignalHandler(controller *network.Controller, cancel context.CancelFunc) {
	go func() {
		c := make(chan os.Signal, 5)
		signal.Notify(c, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

		// Infinte loop.
		for {
			s := <-c
			if s == syscall.SIGTERM || s == syscall.SIGINT {
				// Graceful shutdown
				logger.Warning("Shutting down...")
				cancel()
				// Timeout for cancelation
				time.Sleep(5 * time.Second)
				os.Exit(0)
			} else if s == syscall.SIGHUP {
				fmt.Println("* Controller status:")
				fmt.Println(controller.String())
			}
		}
	}()
}

func initLog(level logging.Level) error {
	backend, err := log.NewSyslog(programName)
	if err != nil {
		return err
	}
	backend = logging.NewBackendFormatter(backend, logging.MustStringFormatter(`%{level}: %{shortpkg}.%{shortfunc}: %{message}`))

	loggerLeveled = logging.AddModuleLevel(backend)
	// Set log level for all modules
	loggerLeveled.SetLevel(level, "")
	logging.SetBackend(loggerLeveled)

	return nil
}

func getLogLevel(level string) logging.Level {
	level = strings.ToUpper(level)
	ret, err := logging.LogLevel(level)
	if err != nil {
		logger.Infof("invalid log level=%v, defaulting to %v..", level, defaultLogLevel)
		return defaultLogLevel
	}

	return ret
}

func listen(ctx context.Context, port int, controller *network.Controller) {
	type KeepAliver interface {
		SetKeepAlive(keepalive bool) error
		SetKeepAlivePeriod(d time.Duration) error
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%v", port))
	if err != nil {
		logger.Errorf("failed to listen on %v port: %v", port, err)
		return
	}
	defer listener.Close()

	// Connection dispatcher.
	f := func(c chan<- net.Conn) {
		for {
			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
					return
				default:
				}
				logger.Errorf("failed to accept a new connection: %v", err)
				continue
			}
			logger.Infof("new switch is connected from %v", conn.RemoteAddr())

			// Pass the new connection into the backlog queue.
			c <- conn
		}
	}
	backlog := make(chan net.Conn, 32)
	go f(backlog)

	// Infinite loop
	for {
		select {
		case <-ctx.Done():
			logger.Debug("terminating the main listener loop...")
			return
		case conn := <-backlog:
			logger.Debug("fetching a new connection from the backlog..")
			if v, ok := conn.(KeepAliver); ok {
				logger.Debug("trying to enable socket keepalive..")
				if err := v.SetKeepAlive(true); err == nil {
					logger.Debug("setting socket keepalive period...")
					// Makes a broken connection will be disconnected within 45 seconds.
					v.SetKeepAlivePeriod(time.Duration(5) * time.Second)
				} else {
					logger.Errorf("failed to enable socket keepalive: %v", err)
				}
			}
			controller.AddConnection(ctx, conn)
		}
	}
}
