package config

import (
	"flag"
	"fmt"
)

// parseCLIFlags parses command-line flags and returns a FlagSource and help flag
func parseCLIFlags() (*FlagSource, bool) {
	flagSource := NewFlagSource()

	relayURLs := flag.String(FlagRelayURLs, "", HelpRelayURLs)
	secretKey := flag.String(FlagSecretKey, "", HelpSecretKey)
	ackThreshold := flag.Int(FlagAckThreshold, 0, HelpAckThreshold)
	ackWaitSeconds := flag.Int(FlagAckWaitSeconds, 0, HelpAckWaitSeconds)
	ackRetryPlan := flag.String(FlagAckRetryPlanSeconds, "", HelpAckRetryPlanSeconds)
	ackGraceSeconds := flag.Int(FlagAckGraceSeconds, 0, HelpAckGraceSeconds)
	networkInitialBackoffSeconds := flag.Int(FlagNetworkInitialBackoffSeconds, 0, HelpNetworkInitialBackoffSeconds)
	networkMaxBackoffSeconds := flag.Int(FlagNetworkMaxBackoffSeconds, 0, HelpNetworkMaxBackoffSeconds)
	networkBackoffJitter := flag.Float64(FlagNetworkBackoffJitter, 0, HelpNetworkBackoffJitter)
	networkDialTimeoutSeconds := flag.Int(FlagNetworkDialTimeoutSeconds, 0, HelpNetworkDialTimeoutSeconds)
	networkWriteTimeoutSeconds := flag.Int(FlagNetworkWriteTimeoutSeconds, 0, HelpNetworkWriteTimeoutSeconds)
	infoTTLHours := flag.Int(FlagInfoTTLHours, 0, HelpInfoTTLHours)
	infoTimeoutSeconds := flag.Int(FlagInfoTimeoutSeconds, 0, HelpInfoTimeoutSeconds)
	help := flag.Bool(FlagHelp, false, HelpShowHelp)

	flag.Parse()

	if *help {
		return flagSource, true
	}

	// Store non-zero/non-empty values in flag source
	if *relayURLs != "" {
		flagSource.Set(KeyRelayURLs, *relayURLs)
	}
	if *secretKey != "" {
		flagSource.Set(KeySecretKey, *secretKey)
	}
	if *ackThreshold != 0 {
		flagSource.Set(KeyAckThreshold, *ackThreshold)
	}
	if *ackWaitSeconds != 0 {
		flagSource.Set(KeyAckWaitSeconds, *ackWaitSeconds)
	}
	if *ackRetryPlan != "" {
		flagSource.Set(KeyAckRetryPlanSeconds, *ackRetryPlan)
	}
	if *ackGraceSeconds != 0 {
		flagSource.Set(KeyAckGraceSeconds, *ackGraceSeconds)
	}
	if *networkInitialBackoffSeconds != 0 {
		flagSource.Set(KeyNetworkInitialBackoffSeconds, *networkInitialBackoffSeconds)
	}
	if *networkMaxBackoffSeconds != 0 {
		flagSource.Set(KeyNetworkMaxBackoffSeconds, *networkMaxBackoffSeconds)
	}
	if *networkBackoffJitter != 0 {
		flagSource.Set(KeyNetworkBackoffJitter, *networkBackoffJitter)
	}
	if *networkDialTimeoutSeconds != 0 {
		flagSource.Set(KeyNetworkDialTimeoutSeconds, *networkDialTimeoutSeconds)
	}
	if *networkWriteTimeoutSeconds != 0 {
		flagSource.Set(KeyNetworkWriteTimeoutSeconds, *networkWriteTimeoutSeconds)
	}
	if *infoTTLHours != 0 {
		flagSource.Set(KeyInfoTTLHours, *infoTTLHours)
	}
	if *infoTimeoutSeconds != 0 {
		flagSource.Set(KeyInfoTimeoutSeconds, *infoTimeoutSeconds)
	}

	return flagSource, false
}

// printUsage prints the usage message
func printUsage() {
	fmt.Printf("%s - %s\n", AppName, AppDescription)
	fmt.Println()
	fmt.Printf("%s\n", HelpUsage)
	fmt.Printf("  %s\n", UsageFormat)
	fmt.Println()
	fmt.Printf("%s\n", HelpOptions)
	fmt.Printf("  --%s string                %s\n", FlagRelayURLs, HelpRelayURLs)
	fmt.Printf("  --%s string               %s\n", FlagSecretKey, HelpSecretKey)
	fmt.Printf("  --%s int               %s (default: %d)\n", FlagAckThreshold, HelpAckThreshold, DefaultAckThreshold)
	fmt.Printf("  --%s int            %s (default: %d)\n", FlagAckWaitSeconds, HelpAckWaitSeconds, DefaultAckWaitSeconds)
	fmt.Printf("  --%s string  %s (default: 3,6,12,24,48)\n", FlagAckRetryPlanSeconds, HelpAckRetryPlanSeconds)
	fmt.Printf("  --%s int           %s (default: %d)\n", FlagAckGraceSeconds, HelpAckGraceSeconds, DefaultAckGraceSeconds)
	fmt.Printf("  --%s int %s (default: %d)\n", FlagNetworkInitialBackoffSeconds, HelpNetworkInitialBackoffSeconds, DefaultNetworkInitialBackoffSeconds)
	fmt.Printf("  --%s int   %s (default: %d)\n", FlagNetworkMaxBackoffSeconds, HelpNetworkMaxBackoffSeconds, DefaultNetworkMaxBackoffSeconds)
	fmt.Printf("  --%s float      %s (default: %.1f)\n", FlagNetworkBackoffJitter, HelpNetworkBackoffJitter, DefaultNetworkBackoffJitter)
	fmt.Printf("  --%s int  %s (default: %d)\n", FlagNetworkDialTimeoutSeconds, HelpNetworkDialTimeoutSeconds, DefaultNetworkDialTimeoutSeconds)
	fmt.Printf("  --%s int %s (default: %d)\n", FlagNetworkWriteTimeoutSeconds, HelpNetworkWriteTimeoutSeconds, DefaultNetworkWriteTimeoutSeconds)
	fmt.Printf("  --%s int          %s (default: %d)\n", FlagInfoTTLHours, HelpInfoTTLHours, DefaultInfoTTLHours)
	fmt.Printf("  --%s int    %s (default: %d)\n", FlagInfoTimeoutSeconds, HelpInfoTimeoutSeconds, DefaultInfoTimeoutSeconds)
	fmt.Printf("  --%s                               %s\n", FlagHelp, HelpShowHelp)
	fmt.Println()
	fmt.Printf("%s\n", HelpEnvironmentVars)
	fmt.Printf("  %-36s %s\n", KeyRelayURLs, HelpRelayURLs)
	fmt.Printf("  %-36s %s\n", KeySecretKey, HelpSecretKey)
	fmt.Printf("  %-36s %s\n", KeyAckThreshold, HelpAckThreshold)
	fmt.Printf("  %-36s %s\n", KeyAckWaitSeconds, HelpAckWaitSeconds)
	fmt.Printf("  %-36s %s\n", KeyAckRetryPlanSeconds, HelpAckRetryPlanSeconds)
	fmt.Printf("  %-36s %s\n", KeyAckGraceSeconds, HelpAckGraceSeconds)
	fmt.Printf("  %-36s %s\n", KeyNetworkInitialBackoffSeconds, HelpNetworkInitialBackoffSeconds)
	fmt.Printf("  %-36s %s\n", KeyNetworkMaxBackoffSeconds, HelpNetworkMaxBackoffSeconds)
	fmt.Printf("  %-36s %s\n", KeyNetworkBackoffJitter, HelpNetworkBackoffJitter)
	fmt.Printf("  %-36s %s\n", KeyNetworkDialTimeoutSeconds, HelpNetworkDialTimeoutSeconds)
	fmt.Printf("  %-36s %s\n", KeyNetworkWriteTimeoutSeconds, HelpNetworkWriteTimeoutSeconds)
	fmt.Printf("  %-36s %s\n", KeyInfoTTLHours, HelpInfoTTLHours)
	fmt.Printf("  %-36s %s\n", KeyInfoTimeoutSeconds, HelpInfoTimeoutSeconds)
	fmt.Println()
	fmt.Printf("%s\n", HelpNote)
}
