package main

import (
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/spf13/cobra"

	quic "github.com/quince-io/quince"
	"github.com/quince-io/quince/transport"
)

func newClientCmd() *cobra.Command {
	var (
		configPath string
		listenAddr string
		insecure   bool
		data       string
		logLevel   int
	)
	cmd := &cobra.Command{
		Use:   "client <address>",
		Short: "connect to a QUIC server and send a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fc, err := loadFileConfig(configPath)
			if err != nil {
				return err
			}
			config := newConfig(fc)
			config.TLS.ServerName = serverName(args[0])
			config.TLS.InsecureSkipVerify = insecure

			handler := &clientHandler{data: data}
			client := quic.NewClient(config)
			client.SetHandler(handler)
			client.SetLogger(logLevel, os.Stdout)
			if err := client.ListenAndServe(listenAddr); err != nil {
				return err
			}
			handler.wg.Add(1)
			if err := client.Connect(args[0]); err != nil {
				return err
			}
			handler.wg.Wait()
			return client.Close()
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	cmd.Flags().StringVar(&listenAddr, "listen", "0.0.0.0:0", "listen on the given IP:port")
	cmd.Flags().BoolVar(&insecure, "insecure", false, "skip verifying server certificate")
	cmd.Flags().StringVar(&data, "data", "GET /\r\n", "data to send on stream 4")
	cmd.Flags().IntVar(&logLevel, "v", 2, "log verbose: 0=off 1=error 2=info 3=debug 4=trace")
	return cmd
}

type clientHandler struct {
	wg   sync.WaitGroup
	data string
}

func (s *clientHandler) Serve(c quic.Conn, events []transport.Event) {
	for _, e := range events {
		log.Printf("%s connection event: %v", c.RemoteAddr(), e.Type)
		switch e.Type {
		case quic.EventConnAccept:
			st, err := c.Stream(4)
			if err == nil {
				_, _ = st.Write([]byte(s.data))
				_ = st.Close()
			}
		case transport.EventStreamRecv:
			st, err := c.Stream(e.StreamID)
			if err == nil {
				buf := make([]byte, 512)
				n, _ := st.Read(buf)
				fmt.Printf("stream %d received:\n%s", e.StreamID, buf[:n])
			}
		case quic.EventConnClose:
			s.wg.Done()
		}
	}
}
