package main

import (
	"encoding/base64"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/wvkit/gowvcdm/wv"
	wvpb "github.com/wvkit/gowvcdm/wv/proto"
)

var (
	heading = color.New(color.Bold, color.FgCyan).SprintFunc()
	field   = color.New(color.FgYellow).SprintFunc()
)

func main() {
	root := &cobra.Command{
		Use:           "gowvcdm",
		Short:         "Widevine CDM client and license proxy",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var configPath string
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the license proxy HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveMain(configPath)
		},
	}
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "./serve.yaml", "path to the serve config")

	psshCmd := &cobra.Command{
		Use:   "pssh <base64>",
		Short: "Decode a PSSH box",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return decodePSSH(args[0])
		},
	}

	certCmd := &cobra.Command{
		Use:   "cert <base64>",
		Short: "Verify and inspect a service certificate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return inspectCert(args[0])
		},
	}

	challengeCmd := &cobra.Command{
		Use:   "challenge <base64>",
		Short: "Decode a license challenge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return decodeChallenge(args[0])
		},
	}

	root.AddCommand(serveCmd, psshCmd, certCmd, challengeCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
		os.Exit(1)
	}
}

func decodePSSH(b64 string) error {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return fmt.Errorf("decode base64: %w", err)
	}
	pssh, err := wv.NewPSSH(raw)
	if err != nil {
		return err
	}

	data := pssh.Data()
	fmt.Println(heading("PSSH"))
	fmt.Printf("%s: %d\n", field("version"), pssh.Version())
	fmt.Printf("%s: %s\n", field("provider"), data.Provider)
	fmt.Printf("%s: %x\n", field("content id"), data.ContentID)
	for _, kid := range data.KeyIDs {
		fmt.Printf("%s: %x\n", field("key id"), kid)
	}
	if data.Policy != "" {
		fmt.Printf("%s: %s\n", field("policy"), data.Policy)
	}
	if data.ProtectionScheme != 0 {
		fmt.Printf("%s: %08x\n", field("protection scheme"), data.ProtectionScheme)
	}
	return nil
}

func inspectCert(b64 string) error {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return fmt.Errorf("decode base64: %w", err)
	}
	signed, err := wv.ParseServiceCert(raw)
	if err != nil {
		return err
	}
	cert, err := wv.VerifyServiceCert(signed)
	if err != nil {
		return err
	}

	fmt.Println(heading("Service certificate"), color.GreenString("(signature ok)"))
	fmt.Printf("%s: %s\n", field("provider"), cert.ProviderID)
	fmt.Printf("%s: %x\n", field("serial"), cert.SerialNumber)
	fmt.Printf("%s: %d\n", field("system id"), cert.SystemID)
	return nil
}

func decodeChallenge(b64 string) error {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return fmt.Errorf("decode base64: %w", err)
	}
	signed := &wvpb.SignedMessage{}
	if err := signed.Unmarshal(raw); err != nil {
		return err
	}
	if signed.Type != wvpb.MessageTypeLicenseRequest {
		return fmt.Errorf("message is a %v, not a license request", signed.Type)
	}
	req := &wvpb.LicenseRequest{}
	if err := req.Unmarshal(signed.Msg); err != nil {
		return err
	}

	fmt.Println(heading("License challenge"))
	fmt.Printf("%s: %v\n", field("request type"), req.Type)
	fmt.Printf("%s: %d\n", field("request time"), req.RequestTime)
	fmt.Printf("%s: %d\n", field("protocol version"), req.ProtocolVersion)
	if len(req.ClientID) > 0 {
		fmt.Printf("%s: %d bytes in the clear\n", field("client id"), len(req.ClientID))
	}
	if req.EncryptedClientID != nil {
		fmt.Printf("%s: provider %s\n", field("client id"), req.EncryptedClientID.ProviderID)
	}
	if req.ContentID != nil && req.ContentID.WidevinePsshData != nil {
		pd := req.ContentID.WidevinePsshData
		fmt.Printf("%s: %v\n", field("license type"), pd.LicenseType)
		fmt.Printf("%s: %s\n", field("request id"), pd.RequestID)
	}
	return nil
}
