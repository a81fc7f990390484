package main

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/jacktea/massmedia/pkg/xerrors"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	a := newApp()
	root := a.rootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	a.close()
	return out.String(), err
}

// newSite lays out <base>/app and <base>/web and returns the flags pointing at them.
func newSite(t *testing.T) (string, []string) {
	t.Helper()
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "app"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(base, "web"), 0o755))
	return base, []string{"--root-dir", filepath.Join(base, "app"), "--upload-dir", "media", "--log-level", "error"}
}

func sha1Hex(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestLoadConfigDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("upload_dir", "media")
	cfg, err := loadConfig(v)
	require.NoError(t, err)

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.Equal(t, "sha1", cfg.HashAlgorithm)
	require.Equal(t, 2, cfg.ShardDepth)
	require.Equal(t, 2, cfg.ShardWidth)
	require.Equal(t, "web", cfg.WebDirName)
	require.Equal(t, "media", cfg.UploadDir)
	require.Equal(t, wd, cfg.RootDir)
}

func TestLoadConfigFromEnvAndFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "massmedia.yaml")
	require.NoError(t, os.WriteFile(file, []byte("hash_algo: md5\nfolder_chars: 3\nupload_dir: uploads\n"), 0o644))
	t.Setenv("MASSMEDIA_FOLDER_DEPTH", "1")

	a := newApp()
	a.rootCmd()
	a.cfgFile = file
	require.NoError(t, a.initConfig())
	cfg, err := loadConfig(a.v)
	require.NoError(t, err)
	require.Equal(t, "md5", cfg.HashAlgorithm)
	require.Equal(t, 1, cfg.ShardDepth)
	require.Equal(t, 3, cfg.ShardWidth)
	require.Equal(t, "uploads", cfg.UploadDir)
}

func TestBuildLogger(t *testing.T) {
	_, err := buildLogger("debug")
	require.NoError(t, err)
	_, err = buildLogger("chatty")
	require.Error(t, err)
}

func TestCLIRequiresUploadDir(t *testing.T) {
	base, _ := newSite(t)
	_, err := runCLI(t, "path", "abcd.jpg", "--root-dir", filepath.Join(base, "app"), "--log-level", "error")
	require.ErrorIs(t, err, xerrors.ErrConfig)
}

func TestCLIPutPathRemove(t *testing.T) {
	base, flags := newSite(t)
	src := filepath.Join(base, "cat.JPEG")
	require.NoError(t, os.WriteFile(src, []byte("meow"), 0o644))
	want := sha1Hex("u1"+sha1Hex("meow")) + ".jpg"

	out, err := runCLI(t, append([]string{"name", "--unique", "u1", src}, flags...)...)
	require.NoError(t, err)
	require.Equal(t, want+"\n", out)
	_, err = os.Stat(filepath.Join(base, "web", "media", want[:2]))
	require.True(t, os.IsNotExist(err), "name does not store anything")

	out, err = runCLI(t, append([]string{"put", "--unique", "u1", src}, flags...)...)
	require.NoError(t, err)
	web := "media/" + want[:2] + "/" + want[2:4] + "/" + want
	require.Equal(t, want+"\t"+web+"\n", out)
	stored := filepath.Join(base, "web", web)
	data, err := os.ReadFile(stored)
	require.NoError(t, err)
	require.Equal(t, "meow", string(data))
	_, err = os.Stat(src)
	require.NoError(t, err, "put copies by default")

	out, err = runCLI(t, append([]string{"path", want}, flags...)...)
	require.NoError(t, err)
	require.Contains(t, out, "web_path\t"+web+"\n")
	require.Contains(t, out, "sub_folder_path\t"+want[:2]+"/"+want[2:4]+"\n")
	require.Contains(t, out, "absolute_path\t"+stored+"\n")

	_, err = runCLI(t, append([]string{"rm", want}, flags...)...)
	require.NoError(t, err)
	entries, err := os.ReadDir(filepath.Join(base, "web", "media"))
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestCLIPutMove(t *testing.T) {
	base, flags := newSite(t)
	src := filepath.Join(base, "clip.mp4")
	require.NoError(t, os.WriteFile(src, []byte("frames"), 0o644))

	out, err := runCLI(t, append([]string{"put", "--move", src}, flags...)...)
	require.NoError(t, err)
	name := strings.SplitN(strings.TrimSpace(out), "\t", 2)[0]
	require.Equal(t, sha1Hex(sha1Hex("frames"))+".mp4", name)
	_, err = os.Stat(src)
	require.True(t, os.IsNotExist(err))
}

func TestCLIRemoveKeepFoldersAndGC(t *testing.T) {
	base, flags := newSite(t)
	src := filepath.Join(base, "a.png")
	require.NoError(t, os.WriteFile(src, []byte("pixels"), 0o644))

	out, err := runCLI(t, append([]string{"put", src}, flags...)...)
	require.NoError(t, err)
	name := strings.SplitN(strings.TrimSpace(out), "\t", 2)[0]

	_, err = runCLI(t, append([]string{"rm", "--keep-folders", name}, flags...)...)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(base, "web", "media", name[:2], name[2:4]))
	require.NoError(t, err)

	out, err = runCLI(t, append([]string{"gc"}, flags...)...)
	require.NoError(t, err)
	require.Equal(t, "gc removed 0 directories\n", out, "freshly touched directories are spared")
	_, err = os.Stat(filepath.Join(base, "web", "media", name[:2], name[2:4]))
	require.NoError(t, err)

	out, err = runCLI(t, append([]string{"gc", "--min-age", "0"}, flags...)...)
	require.NoError(t, err)
	require.Equal(t, "gc removed 2 directories\n", out)
	_, err = os.Stat(filepath.Join(base, "web", "media", name[:2]))
	require.True(t, os.IsNotExist(err))
}
