package capture

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"os"
	"os/exec"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
)

// The audio track is piped to ffmpeg on the first extra file descriptor.
const audioInput = "pipe:3"

// How long ffmpeg may take to finish after its inputs were closed.
const ffmpegTimeout = 10 * time.Second

// ffmpeg streams raw RGBA frames and s16le audio into an ffmpeg child
// process.
type ffmpeg struct {
	cmd   *exec.Cmd
	video io.WriteCloser
	audio *os.File
	done  chan error
}

// ffmpegArgs splits the argument template and substitutes its placeholders.
// Splitting happens first, so substituted paths may contain spaces.
func ffmpegArgs(template, output string, size image.Point, fps int, rate uint32, withAudio bool) ([]string, error) {
	args, err := shellquote.Split(template)
	if err != nil {
		return nil, fmt.Errorf("capture: ffmpeg arguments: %w", err)
	}
	r := strings.NewReplacer(
		"{w}", strconv.Itoa(size.X),
		"{h}", strconv.Itoa(size.Y),
		"{fps}", strconv.Itoa(fps),
		"{rate}", strconv.FormatUint(uint64(rate), 10),
		"{audio}", audioInput,
		"{output}", output,
	)
	for i := range args {
		args[i] = r.Replace(args[i])
	}
	if !withAudio {
		args = dropInput(args, audioInput)
	}
	return args, nil
}

// dropInput removes the input with the given url and the options preceding
// it.
func dropInput(args []string, input string) []string {
	start := 0
	for i := 0; i+1 < len(args); i++ {
		if args[i] != "-i" {
			continue
		}
		if args[i+1] == input {
			return slices.Delete(args, start, i+2)
		}
		start = i + 2
		i++
	}
	return args
}

func newFFmpeg(path, template, output string, size image.Point, fps int, rate uint32, withAudio bool, logger *log.Logger) (*ffmpeg, error) {
	args, err := ffmpegArgs(template, output, size, fps, rate, withAudio)
	if err != nil {
		return nil, err
	}
	cmd := exec.Command(path, args...)
	processGroupEnable(cmd)

	video, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}

	enc := &ffmpeg{cmd: cmd, video: video, done: make(chan error, 1)}
	var audioR *os.File
	if withAudio {
		audioR, enc.audio, err = os.Pipe()
		if err != nil {
			return nil, fmt.Errorf("capture: %w", err)
		}
		cmd.ExtraFiles = []*os.File{audioR}
	}

	err = cmd.Start()
	if audioR != nil {
		audioR.Close()
	}
	if err != nil {
		if enc.audio != nil {
			enc.audio.Close()
		}
		return nil, fmt.Errorf("capture: start ffmpeg: %w", err)
	}

	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			logger.Println("[Capture] ffmpeg:", scanner.Text())
		}
		enc.done <- cmd.Wait()
	}()
	return enc, nil
}

func (e *ffmpeg) writeFrame(img *image.RGBA) error {
	w := img.Rect.Dx() * 4
	for y := range img.Rect.Dy() {
		off := y * img.Stride
		if _, err := e.video.Write(img.Pix[off : off+w]); err != nil {
			return fmt.Errorf("capture: write frame: %w", err)
		}
	}
	return nil
}

func (e *ffmpeg) writeAudio(samples []int16) error {
	if e.audio == nil {
		return nil
	}
	if err := binary.Write(e.audio, binary.LittleEndian, samples); err != nil {
		return fmt.Errorf("capture: write audio: %w", err)
	}
	return nil
}

func (e *ffmpeg) close() error {
	err := e.video.Close()
	if e.audio != nil {
		err = errors.Join(err, e.audio.Close())
	}
	select {
	case werr := <-e.done:
		err = errors.Join(err, werr)
	case <-time.After(ffmpegTimeout):
		err = errors.Join(err, processGroupKill(e.cmd), errors.New("capture: ffmpeg timed out"))
	}
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	return nil
}
