package main

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	quic "github.com/quince-io/quince"
	"github.com/quince-io/quince/transport"
)

func newServerCmd() *cobra.Command {
	var (
		configPath string
		listenAddr string
		certFile   string
		keyFile    string
		logLevel   int
	)
	cmd := &cobra.Command{
		Use:   "server",
		Short: "accept QUIC connections and echo received stream data",
		RunE: func(cmd *cobra.Command, args []string) error {
			fc, err := loadFileConfig(configPath)
			if err != nil {
				return err
			}
			config := newConfig(fc)
			cert, err := tls.LoadX509KeyPair(certFile, keyFile)
			if err != nil {
				return err
			}
			config.TLS.Certificates = []tls.Certificate{cert}
			config.TLS.ClientCAs = x509.NewCertPool()

			server := quic.NewServer(config)
			server.SetHandler(&serverHandler{})
			server.SetLogger(logLevel, os.Stdout)
			if err := server.ListenAndServe(listenAddr); err != nil {
				return err
			}
			log.Printf("quince server listening on %s", listenAddr)

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt)
			<-stop
			return server.Close()
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	cmd.Flags().StringVar(&listenAddr, "listen", "0.0.0.0:4433", "listen on the given IP:port")
	cmd.Flags().StringVar(&certFile, "cert", "", "TLS certificate file (required)")
	cmd.Flags().StringVar(&keyFile, "key", "", "TLS private key file (required)")
	cmd.Flags().IntVar(&logLevel, "v", 2, "log verbose: 0=off 1=error 2=info 3=debug 4=trace")
	cmd.MarkFlagRequired("cert")
	cmd.MarkFlagRequired("key")
	return cmd
}

type serverHandler struct{}

func (s *serverHandler) Serve(c quic.Conn, events []transport.Event) {
	for _, e := range events {
		switch e.Type {
		case quic.EventConnAccept:
			log.Printf("%s connection accepted", c.RemoteAddr())
		case transport.EventStreamRecv:
			st, err := c.Stream(e.StreamID)
			if err != nil {
				continue
			}
			buf := make([]byte, 4096)
			n, _ := st.Read(buf)
			if n > 0 {
				fmt.Printf("%s stream %d: %s\n", c.RemoteAddr(), e.StreamID, buf[:n])
				_, _ = st.Write(buf[:n])
			}
			_ = st.Close()
		case quic.EventConnClose:
			log.Printf("%s connection closed", c.RemoteAddr())
		}
	}
}
