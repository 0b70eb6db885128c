/*************************************************************************
 * Copyright 2026 TrustEdge Labs. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultLogLevel             = `ERROR`
	defaultChunkSizeBytes       = 1 * mb
	defaultChunkDurationSeconds = 2.0
	defaultMaxFrameBytes        = 16 * mb
	defaultConnectTimeout       = `30s`
	defaultReadTimeout          = `60s`
	defaultWriteTimeout         = `30s`
	defaultAEADAlgFile          = `xchacha20poly1305`
	defaultAEADAlgStream        = `aes256gcm`
	defaultSigAlg               = `ed25519`
)

const (
	envLogLevel     string = `TRUSTEDGE_LOG_LEVEL`
	envKeyStorePass string = `TRUSTEDGE_KEYSTORE_PASSPHRASE`
)

var (
	ErrInvalidLogLevel      = errors.New("Invalid Log Level")
	ErrInvalidChunkSize     = errors.New("chunk_size_bytes must be greater than zero")
	ErrInvalidChunkDuration = errors.New("chunk_duration_seconds must be greater than zero")
	ErrInvalidAEADAlg       = errors.New("aead_alg is not a recognized algorithm")
	ErrInvalidSigAlg        = errors.New("sig_alg is not a recognized algorithm")
	ErrInvalidTimeout       = errors.New("timeout value could not be parsed as a duration")
	ErrInvalidMaxFrameBytes = errors.New("max_frame_bytes must be greater than zero")
)

// GlobalConfig carries the ambient options every mode shares: where to
// log and how loud to be. It mirrors the teacher's bare [Global]
// stanza rather than scattering log options across every mode.
type GlobalConfig struct {
	Log_Level string
	Log_File  string
}

// WrapConfig carries the options recognized for the wrap operation.
type WrapConfig struct {
	Chunk_Size_Bytes       uint64
	Chunk_Duration_Seconds float64
	Fps                    uint
	Aead_Alg               string
	Sig_Alg                string
	Key_Store_Path         string
	Key_Id                 string
}

// VerifyConfig carries the options recognized for the verify
// operation.
type VerifyConfig struct {
	Key_Store_Path string
	Reopen_Prev    bool
}

// StreamConfig carries the options recognized for the live streaming
// protocol (session handshake, frame codec, sealed-chunk transport).
type StreamConfig struct {
	Connect_Timeout       string
	Read_Timeout          string
	Write_Timeout         string
	Max_Frame_Bytes       uint64
	Aead_Alg              string
	Sig_Alg               string
	Handshake_Rate_Limit  string // raw string; not parsed by any package here (session.Config takes a *rate.Limiter)
}

// Config is the top-level structure handed to LoadConfigFile /
// LoadConfigBytes. Section names map onto ini stanzas the same way
// the teacher's gcfg-backed structs do: [Global], [Wrap], [Verify],
// [Stream].
type Config struct {
	Global GlobalConfig
	Wrap   WrapConfig
	Verify VerifyConfig
	Stream StreamConfig
}

func (c *Config) loadDefaults() error {
	if err := LoadEnvVar(&c.Global.Log_Level, envLogLevel, defaultLogLevel); err != nil {
		return err
	}
	if c.Wrap.Chunk_Size_Bytes == 0 {
		c.Wrap.Chunk_Size_Bytes = defaultChunkSizeBytes
	}
	if c.Wrap.Chunk_Duration_Seconds == 0 {
		c.Wrap.Chunk_Duration_Seconds = defaultChunkDurationSeconds
	}
	if c.Wrap.Aead_Alg == `` {
		c.Wrap.Aead_Alg = defaultAEADAlgFile
	}
	if c.Wrap.Sig_Alg == `` {
		c.Wrap.Sig_Alg = defaultSigAlg
	}
	if c.Verify.Key_Store_Path == `` {
		c.Verify.Key_Store_Path = c.Wrap.Key_Store_Path
	}
	if c.Stream.Connect_Timeout == `` {
		c.Stream.Connect_Timeout = defaultConnectTimeout
	}
	if c.Stream.Read_Timeout == `` {
		c.Stream.Read_Timeout = defaultReadTimeout
	}
	if c.Stream.Write_Timeout == `` {
		c.Stream.Write_Timeout = defaultWriteTimeout
	}
	if c.Stream.Max_Frame_Bytes == 0 {
		c.Stream.Max_Frame_Bytes = defaultMaxFrameBytes
	}
	if c.Stream.Aead_Alg == `` {
		c.Stream.Aead_Alg = defaultAEADAlgStream
	}
	if c.Stream.Sig_Alg == `` {
		c.Stream.Sig_Alg = defaultSigAlg
	}
	return nil
}

// Verify loads environment-sourced defaults and checks every
// recognized option for sane bounds, matching the teacher's
// IngestConfig.Verify idiom: load, normalize, then reject.
func (c *Config) Verify() error {
	if err := c.loadDefaults(); err != nil {
		return err
	}

	c.Global.Log_Level = strings.ToUpper(strings.TrimSpace(c.Global.Log_Level))
	if err := c.checkLogLevel(); err != nil {
		return err
	}

	if c.Global.Log_File != `` {
		if err := ensureParentDir(c.Global.Log_File); err != nil {
			return err
		}
	}

	if c.Wrap.Chunk_Size_Bytes == 0 {
		return ErrInvalidChunkSize
	}
	if c.Wrap.Chunk_Duration_Seconds <= 0 {
		return ErrInvalidChunkDuration
	}
	if !validAEADAlg(c.Wrap.Aead_Alg) {
		return ErrInvalidAEADAlg
	}
	if !validSigAlg(c.Wrap.Sig_Alg) {
		return ErrInvalidSigAlg
	}

	for _, to := range []string{c.Stream.Connect_Timeout, c.Stream.Read_Timeout, c.Stream.Write_Timeout} {
		if _, err := time.ParseDuration(to); err != nil {
			return ErrInvalidTimeout
		}
	}
	if c.Stream.Max_Frame_Bytes == 0 {
		return ErrInvalidMaxFrameBytes
	}
	if !validAEADAlg(c.Stream.Aead_Alg) {
		return ErrInvalidAEADAlg
	}
	if !validSigAlg(c.Stream.Sig_Alg) {
		return ErrInvalidSigAlg
	}
	return nil
}

func (c *Config) checkLogLevel() error {
	if len(c.Global.Log_Level) == 0 {
		c.Global.Log_Level = defaultLogLevel
		return nil
	}
	switch c.Global.Log_Level {
	case `OFF`, `DEBUG`, `INFO`, `WARN`, `ERROR`, `CRITICAL`:
		return nil
	}
	return ErrInvalidLogLevel
}

// ConnectTimeout, ReadTimeout and WriteTimeout parse the stream
// section's string durations, returned already validated by Verify.
func (c *Config) ConnectTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Stream.Connect_Timeout)
	return d
}

func (c *Config) ReadTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Stream.Read_Timeout)
	return d
}

func (c *Config) WriteTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Stream.Write_Timeout)
	return d
}

func validAEADAlg(a string) bool {
	switch strings.ToLower(a) {
	case `xchacha20poly1305`, `aes256gcm`:
		return true
	}
	return false
}

func validSigAlg(a string) bool {
	switch strings.ToLower(a) {
	case `ed25519`, `ecdsa-p256`:
		return true
	}
	return false
}

func ensureParentDir(p string) error {
	dir := filepath.Dir(p)
	fi, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return os.MkdirAll(dir, 0700)
		}
		return err
	} else if !fi.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}
