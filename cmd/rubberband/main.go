// Command rubberband time-stretches and pitch-shifts WAV audio files.
//
// Usage:
//
//	rubberband -time 1.5 input.wav output.wav            # 50% longer
//	rubberband -pitch 1.26 input.wav output.wav          # up ~4 semitones
//	rubberband -time 0.5 -pitch 2 -smooth in.wav out.wav
//
// The offline two-pass engine is used: the whole file is studied first,
// then processed against the resulting stretch schedule.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/DavidCaelum/rubberband"
)

const (
	// Number of interleaved frames read from the decoder per chunk.
	readChunkFrames = 65536

	// Retrieve block size per channel.
	retrieveBlock = 4096

	minRequiredArgs = 2

	bitsPerSample16 = 16
	bitsPerSample24 = 24
	bitsPerSample32 = 32

	maxInt16 = 32767.0
	maxInt24 = 8388607.0
	maxInt32 = 2147483647.0
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	timeRatio := flag.Float64("time", 1.0, "Time ratio: output duration / input duration (e.g. 2 = twice as long)")
	pitchScale := flag.Float64("pitch", 1.0, "Pitch scale: output frequency / input frequency (e.g. 2 = one octave up)")
	precise := flag.Bool("precise", false, "Distribute stretch uniformly instead of favouring tonal regions")
	smooth := flag.Bool("smooth", false, "Disable hard transient preservation (softer attacks)")
	threads := flag.Bool("threads", true, "Process channels on worker goroutines")
	verbose := flag.Bool("v", false, "Verbose output")
	flag.Parse()

	args := flag.Args()
	if len(args) < minRequiredArgs {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] input.wav output.wav\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -time 1.5 song.wav slower.wav          # stretch to 150%%\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -pitch 0.5 voice.wav octave_down.wav   # pitch down an octave\n", os.Args[0])
		return fmt.Errorf("insufficient arguments")
	}
	if *timeRatio <= 0 || *pitchScale <= 0 {
		return fmt.Errorf("time ratio and pitch scale must be positive")
	}

	inputPath := args[0]
	outputPath := args[1]

	channels, rate, bitDepth, samples, err := readWAV(inputPath)
	if err != nil {
		return err
	}

	opts := rubberband.ProcessOffline
	if *precise {
		opts |= rubberband.StretchPrecise
	} else {
		opts |= rubberband.StretchElastic
	}
	if *smooth {
		opts |= rubberband.TransientsSmooth
	} else {
		opts |= rubberband.TransientsCrisp
	}
	if *threads {
		opts |= rubberband.ThreadingAuto
	} else {
		opts |= rubberband.ThreadingNone
	}

	s, err := rubberband.New(float64(rate), channels, opts, *timeRatio, *pitchScale)
	if err != nil {
		return err
	}
	if *verbose {
		s.SetLogger(rubberband.StdLogger{})
		log.Printf("Input: %s (%d Hz, %d channels, %d-bit, %d samples)",
			inputPath, rate, channels, bitDepth, len(samples[0]))
		log.Printf("Time ratio: %.3f, pitch scale: %.3f", *timeRatio, *pitchScale)
	}
	s.SetExpectedInputDuration(len(samples[0]))

	start := time.Now()

	if err := s.Study(samples, true); err != nil {
		return fmt.Errorf("study pass: %w", err)
	}
	if err := s.Process(samples, true); err != nil {
		return fmt.Errorf("process pass: %w", err)
	}

	output := make([][]float64, channels)
	block := make([][]float64, channels)
	for c := range block {
		block[c] = make([]float64, retrieveBlock)
	}
	for {
		got := s.Retrieve(block, retrieveBlock)
		if got == 0 {
			break
		}
		for c := range output {
			output[c] = append(output[c], block[c][:got]...)
		}
	}
	elapsed := time.Since(start)

	if err := writeWAV(outputPath, rate, bitDepth, output); err != nil {
		return err
	}

	fmt.Printf("Stretched %s -> %s\n", filepath.Base(inputPath), filepath.Base(outputPath))
	fmt.Printf("  %d samples -> %d samples (time %.2fx, pitch %.2fx)\n",
		len(samples[0]), len(output[0]), *timeRatio, *pitchScale)
	fmt.Printf("  Duration: %.2fs, Speed: %.1fx realtime\n",
		elapsed.Seconds(),
		float64(len(samples[0]))/float64(rate)/elapsed.Seconds())

	return nil
}

// readWAV decodes the whole file into per-channel float64 slices
// normalized to [-1, 1].
func readWAV(path string) (channels, rate, bitDepth int, samples [][]float64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, 0, nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer func() { _ = f.Close() }()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return 0, 0, 0, nil, fmt.Errorf("invalid WAV file: %s", path)
	}

	format := decoder.Format()
	channels = format.NumChannels
	rate = format.SampleRate
	bitDepth = int(decoder.BitDepth)
	maxVal := maxValueForBitDepth(bitDepth)

	samples = make([][]float64, channels)
	buf := &audio.IntBuffer{
		Data:   make([]int, readChunkFrames*channels),
		Format: format,
	}
	for {
		n, err := decoder.PCMBuffer(buf)
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, 0, 0, nil, fmt.Errorf("failed to read audio data: %w", err)
		}
		if n == 0 {
			break
		}
		frames := n / channels
		for i := range frames {
			for c := range channels {
				samples[c] = append(samples[c], float64(buf.Data[i*channels+c])/maxVal)
			}
		}
	}

	return channels, rate, bitDepth, samples, nil
}

// writeWAV encodes per-channel float64 slices as interleaved PCM.
func writeWAV(path string, rate, bitDepth int, samples [][]float64) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()

	channels := len(samples)
	enc := wav.NewEncoder(f, rate, bitDepth, channels, 1)
	maxVal := maxValueForBitDepth(bitDepth)

	frames := 0
	if channels > 0 {
		frames = len(samples[0])
	}
	data := make([]int, frames*channels)
	for i := range frames {
		for c := range channels {
			v := samples[c][i]
			if v > 1.0 {
				v = 1.0
			} else if v < -1.0 {
				v = -1.0
			}
			data[i*channels+c] = int(v * maxVal)
		}
	}

	buf := &audio.IntBuffer{
		Data: data,
		Format: &audio.Format{
			NumChannels: channels,
			SampleRate:  rate,
		},
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write audio data: %w", err)
	}
	return enc.Close()
}

func maxValueForBitDepth(bitDepth int) float64 {
	switch bitDepth {
	case bitsPerSample24:
		return maxInt24
	case bitsPerSample32:
		return maxInt32
	default:
		return maxInt16
	}
}
