// Command loadtest drives concurrent synthetic calls against a running
// gateway and reports turnaround latency percentiles, measured off the same
// wire events a real caller would see.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"net/url"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/duplexline/turnbridge/internal/audio"
	"github.com/duplexline/turnbridge/internal/transport"
)

func main() {
	gateway := flag.String("gateway", "ws://localhost:8000/ws/call", "gateway websocket URL")
	concurrency := flag.Int("concurrency", 10, "number of concurrent callers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	profile := flag.String("profile", string(audio.ProfileWeb), "wire profile: telephony or web")
	utteranceMs := flag.Int("utterance-ms", 1200, "duration of synthetic speech per call, in milliseconds")
	flag.Parse()

	p := audio.Profile(*profile)
	if audio.FrameBytes(p) == 0 {
		fmt.Fprintf(os.Stderr, "unknown profile %q\n", *profile)
		os.Exit(1)
	}

	fmt.Printf("Load test: %d concurrent calls for %s\n", *concurrency, *duration)
	fmt.Printf("Gateway: %s | Profile: %s\n\n", *gateway, p)

	var mu sync.Mutex
	var results []callResult
	var wg sync.WaitGroup

	deadline := time.Now().Add(*duration)

	for range *concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(deadline) {
				r := runCall(*gateway, p, *utteranceMs)
				mu.Lock()
				results = append(results, r)
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	printSummary(results)
}

type callResult struct {
	success      bool
	turnaroundMs float64
	err          string
}

// runCall opens one call, streams a synthetic utterance followed by silence
// at real-time cadence, and measures the time from the end of the utterance
// to the peer's next LISTENING state (a full STT->LLM->TTS round trip).
func runCall(gateway string, p audio.Profile, utteranceMs int) callResult {
	u, err := url.Parse(gateway)
	if err != nil {
		return callResult{err: fmt.Sprintf("bad gateway url: %v", err)}
	}
	q := u.Query()
	q.Set("profile", string(p))
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return callResult{err: fmt.Sprintf("dial: %v", err)}
	}
	defer conn.Close()

	done := make(chan callResult, 1)
	go readUntilListening(conn, done)

	if err = streamSyntheticUtterance(conn, p, utteranceMs); err != nil {
		return callResult{err: fmt.Sprintf("send audio: %v", err)}
	}
	speechEnd := time.Now()

	select {
	case r := <-done:
		if r.success {
			r.turnaroundMs = float64(time.Since(speechEnd).Milliseconds())
		}
		return r
	case <-time.After(30 * time.Second):
		return callResult{err: "timed out waiting for response"}
	}
}

// streamSyntheticUtterance sends a burst of noisy, speech-shaped frames
// followed by enough silence to trip end-of-speech, paced at the profile's
// real-time frame cadence so the gateway's VAD sees a realistic stream.
func streamSyntheticUtterance(conn *websocket.Conn, p audio.Profile, utteranceMs int) error {
	frameSamples := audio.FrameSamples(p)
	rate := audio.SampleRate(p)
	framesOfSpeech := utteranceMs / audio.FrameDurationMs
	framesOfSilence := 600 / audio.FrameDurationMs // well past the silence threshold

	for i := 0; i < framesOfSpeech+framesOfSilence; i++ {
		samples := make([]int16, frameSamples)
		if i < framesOfSpeech {
			fillSyntheticSpeech(samples, rate, i*frameSamples)
		}
		wire, err := audio.Encode(samples, p)
		if err != nil {
			return err
		}
		data, err := json.Marshal(transport.EncodeFrame(wire))
		if err != nil {
			return err
		}
		if err = conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return err
		}
		time.Sleep(audio.FrameDurationMs * time.Millisecond)
	}
	return nil
}

func fillSyntheticSpeech(samples []int16, sampleRate, offset int) {
	for i := range samples {
		t := float64(offset+i) / float64(sampleRate)
		v := math.Sin(2*math.Pi*220*t)*0.4 + (rand.Float64()-0.5)*0.1
		samples[i] = int16(v * math.MaxInt16)
	}
}

// readUntilListening drains state messages until LISTENING reappears, which
// only happens once the gateway has finished speaking the reply (or failed
// the turn and reset).
func readUntilListening(conn *websocket.Conn, done chan<- callResult) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			done <- callResult{err: fmt.Sprintf("read: %v", err)}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		var m transport.Message
		if err = json.Unmarshal(data, &m); err != nil {
			continue
		}
		if m.Event == transport.EventState && m.State == "LISTENING" {
			done <- callResult{success: true}
			return
		}
	}
}

func printSummary(results []callResult) {
	var succeeded, failed int
	var turnarounds []float64

	for _, r := range results {
		if !r.success {
			failed++
			continue
		}
		succeeded++
		turnarounds = append(turnarounds, r.turnaroundMs)
	}

	fmt.Printf("\n=== Load Test Results ===\n")
	fmt.Printf("Calls completed: %d\n", succeeded)
	fmt.Printf("Calls failed:    %d\n", failed)

	if len(turnarounds) == 0 {
		fmt.Println("No successful calls to report latency for")
		return
	}

	fmt.Printf("\n%-10s %8s %8s %8s\n", "Stage", "p50", "p95", "p99")
	fmt.Printf("%-10s %8.0fms %8.0fms %8.0fms\n", "turnaround",
		percentile(turnarounds, 50), percentile(turnarounds, 95), percentile(turnarounds, 99))
}

func percentile(data []float64, pct float64) float64 {
	sort.Float64s(data)
	idx := int(math.Ceil(pct/100*float64(len(data)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(data) {
		idx = len(data) - 1
	}
	return data[idx]
}
