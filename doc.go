// Package rubberband implements a phase-vocoder audio time-stretcher and
// pitch-shifter: change the duration of an audio signal without changing
// its pitch, change its pitch without changing duration, or both at
// once, for offline (two-pass, highest quality) and realtime (one-pass,
// low-latency) use.
//
// # Quick Start
//
// For offline (file-to-file) stretching:
//
//	s, err := rubberband.New(44100, 2, rubberband.ProcessOffline|rubberband.StretchPrecise, 1.5, 1.0)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := s.Study(input, true); err != nil {
//	    log.Fatal(err)
//	}
//	if err := s.Process(input, true); err != nil {
//	    log.Fatal(err)
//	}
//	output := make([][]float64, 2)
//	for c := range output {
//	    output[c] = make([]float64, s.Available())
//	}
//	s.Retrieve(output, len(output[0]))
//
// For realtime streaming, feed fixed-size blocks and drain after each:
//
//	s, _ := rubberband.New(44100, 2, rubberband.ProcessRealTime, 1.3, 1.0)
//	for block := range blocks {
//	    s.Process(block, false)
//	    for s.Available() > 0 {
//	        n := s.Retrieve(out, len(out[0]))
//	        writeOutput(out, n)
//	    }
//	}
//
// # Architecture
//
// The engine follows a small pipeline:
//
//	Study (offline only) -> StretchCalculator schedule -> per-channel
//	ChannelProcessor (FFT analysis, phase-vocoder synthesis, overlap-add,
//	optional pitch-scale resampling) -> Retrieve
//
// Offline mode runs an optional worker-per-channel pool once the
// schedule is fixed; realtime mode runs one chunk at a time on the
// caller's goroutine, deciding each chunk's synthesis hop online from a
// cross-channel onset feature.
//
// # Thread Safety
//
// Methods that forward to the orchestrator (Study, Process, Retrieve,
// Available, the ratio and size setters and getters) are serialized by
// its mutex. SetLogger, SetDebugLevel, SetTransientsOption,
// SetPhaseOption and SetFrequencyCutoff, and their getters, change
// fields of the [Stretcher] itself without any locking. It is not
// designed for two goroutines to call Process concurrently with the
// same instance.
package rubberband
