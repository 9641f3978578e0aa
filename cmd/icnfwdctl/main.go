// Command icnfwdctl is the control-plane client talking to a running
// icnfwd daemon over its length-prefixed control socket (spec.md §6),
// grounded on tools/nfdc's control-tool-talks-to-daemon pattern
// (nfdc_cmd.go's Tool.ExecCmd: connect, send one command, print the
// response, exit with a matching status code) generalized from NDN's
// management-dataset RPC vocabulary to this project's line-oriented verb
// grammar.
package main

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/named-data/icnfwd/internal/ctrlsock"
	"github.com/named-data/icnfwd/internal/face"
)

var rootFlags struct {
	host string
	port int
}

var cmdRoot = &cobra.Command{
	Use:   "icnfwdctl VERB [ARGS...]",
	Short: "Send a control verb to a running icnfwd daemon",
	Args:  cobra.MinimumNArgs(1),
	RunE:  run,
}

func init() {
	cmdRoot.PersistentFlags().StringVar(&rootFlags.host, "host", "127.0.0.1", "daemon control socket host")
	cmdRoot.PersistentFlags().IntVar(&rootFlags.port, "port", ctrlsock.DefaultPort, "daemon control socket port")
}

func main() {
	if err := cmdRoot.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	line := strings.Join(args, " ")

	addr := net.JoinHostPort(rootFlags.host, strconv.Itoa(rootFlags.port))
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return fmt.Errorf("icnfwdctl: connecting to %s: %w", addr, err)
	}
	defer conn.Close()

	if err := face.WriteFrame(conn, []byte(line)); err != nil {
		return fmt.Errorf("icnfwdctl: sending verb: %w", err)
	}

	br := bufio.NewReader(conn)
	reply, err := face.ReadFrame(br)
	if err != nil {
		return fmt.Errorf("icnfwdctl: reading reply: %w", err)
	}

	fmt.Println(string(reply))
	if strings.HasPrefix(string(reply), "nack") {
		os.Exit(1)
	}
	return nil
}
