package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/cbegin/stepseq-go"
	"github.com/charmbracelet/lipgloss"
)

var (
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#555"))
	beatStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#999"))
	playheadStyle = lipgloss.NewStyle().Reverse(true)
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888"))
	sceneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#7fd1b9")).Bold(true)
)

func main() {
	var (
		sampleRate = flag.Int("sample-rate", 48000, "output sample rate")
		tempo      = flag.Float64("tempo", stepseq.DefaultTempo, "tempo in BPM (40-240)")
		swing      = flag.Float64("swing", 0, "swing amount (0-0.95)")
		preset     = flag.String("preset", "aurora-lead", "synth preset id")
		presetPath = flag.String("presets", "", "path to a YAML preset library")
		scenes     = flag.String("scenes", "", "comma-separated repeat counts; builds an arrangement of demo variations")
		loops      = flag.Int("loops", 0, "without -scenes, stop after N pattern loops (0 = until interrupted)")
		echo       = flag.Bool("echo", false, "add a dotted-eighth echo to the master bus")
		seed       = flag.Int64("seed", 0, "noise seed for reproducible drums (0 = random)")
		wavPath    = flag.String("wav", "", "render offline to this WAV file instead of playing")
		verbose    = flag.Bool("verbose", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	opts := []stepseq.PlayerOption{
		stepseq.WithTempo(*tempo),
		stepseq.WithSwing(*swing),
		stepseq.WithPreset(*preset),
		stepseq.WithLogger(logger),
	}
	if *presetPath != "" {
		presets, err := loadPresetFile(*presetPath)
		if err != nil {
			log.Fatal(err)
		}
		opts = append(opts, stepseq.WithPresets(presets...))
	}
	if *echo {
		opts = append(opts, stepseq.WithEcho(stepseq.EchoConfig{Beats: 0.75, Feedback: 0.35, Wet: 0.25}))
	}
	if *seed != 0 {
		opts = append(opts, stepseq.WithNoiseSeed(*seed))
	}
	pl, err := stepseq.NewPlayer(*sampleRate, opts...)
	if err != nil {
		log.Fatal(err)
	}

	repeats, err := parseRepeats(*scenes)
	if err != nil {
		log.Fatal(err)
	}
	buildArrangement(pl, repeats)

	if *wavPath != "" {
		if err := renderToFile(pl, *wavPath, *loops); err != nil {
			log.Fatal(err)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	if err := play(ctx, pl, *loops, len(repeats) > 0); err != nil {
		log.Fatal(err)
	}
}

func loadPresetFile(path string) ([]stepseq.SynthSettings, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return stepseq.LoadPresets(f)
}

func parseRepeats(list string) ([]int, error) {
	if strings.TrimSpace(list) == "" {
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(list, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid -scenes entry %q", part)
		}
		out = append(out, n)
	}
	return out, nil
}

// buildArrangement saves one demo variation per repeat count, cycling through
// groove, drum break and busy hats. Without repeats the demo is left as the
// live pattern.
func buildArrangement(pl *stepseq.Player, repeats []int) {
	names := []string{"Groove", "Break", "Lift"}
	for i, r := range repeats {
		pl.SeedDemoPattern()
		switch i % len(names) {
		case 1:
			pat := pl.Pattern()
			for row := range pat.Piano {
				clear(pat.Piano[row])
			}
			pl.LoadPattern(pat)
		case 2:
			for step := 1; step < stepseq.Steps; step += 2 {
				pl.ToggleDrum(stepseq.Hat, step)
			}
		}
		pl.AddScene(names[i%len(names)], r)
	}
	pl.SeedDemoPattern()
}

func renderToFile(pl *stepseq.Player, path string, loops int) error {
	samples, err := pl.Render(stepseq.RenderOptions{Loops: max(loops, 1)})
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := stepseq.EncodeWAV(f, samples, pl.SampleRate()); err != nil {
		f.Close()
		return err
	}
	fmt.Printf("wrote %s (%.2fs)\n", path, float64(len(samples)/2)/float64(pl.SampleRate()))
	return f.Close()
}

func play(ctx context.Context, pl *stepseq.Player, loops int, arranged bool) error {
	defer pl.Close()
	ch := pl.Watch()
	if err := pl.Play(); err != nil {
		return err
	}
	finished := pl.Done()
	fmt.Println(statusStyle.Render(fmt.Sprintf("%s  %.0f BPM  swing %.2f  preset %s",
		pl.Status(), pl.Tempo(), pl.Swing(), pl.SynthSettings().Name)))

	passes := 0
	for {
		select {
		case <-ctx.Done():
			pl.Stop()
			fmt.Println()
			return nil
		case ev := <-ch:
			switch ev.Kind {
			case stepseq.EventStep:
				fmt.Print("\r" + stepBar(ev.Step))
				if ev.Step == stepseq.Steps-1 {
					passes++
					if !arranged && loops > 0 && passes >= loops {
						pl.Stop()
					}
				}
			case stepseq.EventScene:
				fmt.Print("\r" + sceneStyle.Render(ev.Status) + "\n")
			case stepseq.EventStopped:
				ringOut(pl, ev.Status)
				return nil
			}
		case <-finished:
			// The Stopped event can be dropped when the watch buffer is full.
			ringOut(pl, pl.Status())
			return nil
		}
	}
}

// ringOut prints the final status and lets the last notes decay.
func ringOut(pl *stepseq.Player, status string) {
	fmt.Print("\r" + statusStyle.Render(status) + "\n")
	time.Sleep(time.Duration((pl.SynthSettings().Envelope.Release + 0.2) * float64(time.Second)))
}

func stepBar(playing int) string {
	var b strings.Builder
	for step := 0; step < stepseq.Steps; step++ {
		cell := "·"
		style := dimStyle
		if step%4 == 0 {
			cell = "•"
			style = beatStyle
		}
		if step == playing {
			cell = "█"
			style = playheadStyle
		}
		b.WriteString(style.Render(cell))
	}
	return b.String()
}
