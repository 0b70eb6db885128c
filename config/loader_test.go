/*************************************************************************
 * Copyright 2026 TrustEdge Labs. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigBytesPopulatesSections(t *testing.T) {
	b := []byte(`
	[global]
	log-level = INFO
	log-file = /var/log/trustedge.log

	[wrap]
	chunk-size-bytes = 2097152
	chunk-duration-seconds = 1.5
	aead-alg = xchacha20poly1305
	sig-alg = ed25519
	key-store-path = /var/lib/trustedge/keys.db
	key-id = device-1

	[stream]
	connect-timeout = 15s
	read-timeout = 45s
	write-timeout = 15s
	max-frame-bytes = 4194304
	aead-alg = aes256gcm
	sig-alg = ed25519
	`)
	var c Config
	require.NoError(t, LoadConfigBytes(&c, b))
	require.NoError(t, c.Verify())

	require.Equal(t, `INFO`, c.Global.Log_Level)
	require.Equal(t, `/var/log/trustedge.log`, c.Global.Log_File)
	require.Equal(t, uint64(2097152), c.Wrap.Chunk_Size_Bytes)
	require.Equal(t, 1.5, c.Wrap.Chunk_Duration_Seconds)
	require.Equal(t, `device-1`, c.Wrap.Key_Id)
	require.Equal(t, uint64(4194304), c.Stream.Max_Frame_Bytes)
	require.Equal(t, `aes256gcm`, c.Stream.Aead_Alg)
}

func TestLoadConfigBytesAppliesDefaultsWhenSectionsOmitted(t *testing.T) {
	var c Config
	require.NoError(t, LoadConfigBytes(&c, []byte(`[global]`)))
	require.NoError(t, c.Verify())
	require.Equal(t, uint64(defaultChunkSizeBytes), c.Wrap.Chunk_Size_Bytes)
	require.Equal(t, `xchacha20poly1305`, c.Wrap.Aead_Alg)
}

func TestLoadConfigBytesRejectsOversizedInput(t *testing.T) {
	big := make([]byte, maxConfigSize+1)
	var c Config
	require.ErrorIs(t, LoadConfigBytes(&c, big), ErrConfigFileTooLarge)
}

func TestLoadConfigFileMissing(t *testing.T) {
	var c Config
	err := LoadConfigFile(&c, `/nonexistent/path/trustedge.conf`)
	require.Error(t, err)
}
