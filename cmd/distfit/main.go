// Command distfit compares the pinhole and inverse-linear distance models
// over measured (distance, pixel diameter) pairs.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"balltrack/internal/config"
	"balltrack/internal/distance"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "Path to JSON configuration (defaults built in)")
	pairsPath := flag.String("pairs", "", "JSON file of [{\"distance\": m, \"pixel_diameter\": px}] (reference series if empty)")
	realDiameter := flag.Float64("diameter", 0, "Real ball diameter in meters (overrides config)")
	verbose := flag.Bool("v", false, "Print per-pair predictions")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}
	diameter := cfg.Distance.RealDiameter
	if *realDiameter > 0 {
		diameter = *realDiameter
	}

	pairs := distance.ReferencePairs()
	if *pairsPath != "" {
		data, err := os.ReadFile(*pairsPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read pairs: %v\n", err)
			return 1
		}
		pairs = nil
		if err := json.Unmarshal(data, &pairs); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to parse pairs: %v\n", err)
			return 1
		}
	}
	fmt.Printf("Pairs: %d, ball diameter %.3f m\n", len(pairs), diameter)

	inverse, err := distance.FitInverse(pairs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Inverse fit failed: %v\n", err)
		return 1
	}
	pinhole, err := distance.FitPinhole(pairs, diameter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Pinhole fit failed: %v\n", err)
		return 1
	}

	fmt.Printf("\nInverse-linear: distance = %.6f / px %+.6f\n", inverse.A, inverse.B)
	fmt.Printf("Pinhole: focal = %.4f px\n", pinhole.Focal)

	var evals []distance.Evaluation
	for _, est := range []distance.Estimator{pinhole, inverse} {
		ev, err := distance.MeanAbsoluteError(est, pairs)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Evaluating %s failed: %v\n", est.Name(), err)
			return 1
		}
		evals = append(evals, ev)
	}

	fmt.Printf("\n%-16s %12s\n", "Model", "MAE (m)")
	for _, ev := range evals {
		fmt.Printf("%-16s %12.6f\n", ev.Model, ev.MAE)
	}

	if *verbose {
		fmt.Printf("\n%10s %12s %12s %12s\n", "Distance", "Pixels", evals[0].Model, evals[1].Model)
		for i, p := range pairs {
			fmt.Printf("%10.3f %12.2f %12.4f %12.4f\n", p.Distance, p.PixelDiameter, evals[0].Predicted[i], evals[1].Predicted[i])
		}
	}
	return 0
}
