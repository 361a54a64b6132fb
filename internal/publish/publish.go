// Package publish uploads a rendered portfolio to a remote host over SFTP.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/TobiSchelling/portfolio-necromancer/internal/config"
)

// ErrNotConfigured is returned when host, user or credentials are missing.
var ErrNotConfigured = errors.New("sftp: host, user and a password or key file are required")

// Config describes the remote end.
type Config struct {
	Host                  string
	Port                  int
	User                  string
	Password              string
	KeyFile               string
	KnownHostsFile        string
	InsecureIgnoreHostKey bool
	RemoteDir             string
}

// FromConfig builds a Config from the deploy.sftp section.
func FromConfig(cfg *config.Config) Config {
	s := cfg.Deploy.SFTP
	return Config{
		Host:                  s.Host,
		Port:                  s.Port,
		User:                  s.User,
		Password:              cfg.SFTPPassword(),
		KeyFile:               s.KeyFile,
		KnownHostsFile:        s.KnownHostsFile,
		InsecureIgnoreHostKey: s.InsecureIgnoreHostKey,
		RemoteDir:             s.RemoteDir,
	}
}

// Result summarizes an upload.
type Result struct {
	Target string
	Files  int
	Bytes  int64
}

// Publisher uploads site directories.
type Publisher struct {
	cfg Config
}

// New creates a publisher, filling in the default port and remote directory.
func New(cfg Config) *Publisher {
	if cfg.Port <= 0 {
		cfg.Port = 22
	}
	if cfg.RemoteDir == "" {
		cfg.RemoteDir = "/"
	}
	return &Publisher{cfg: cfg}
}

// Target returns the URL a site named name would be uploaded to.
func (p *Publisher) Target(name string) string {
	return fmt.Sprintf("sftp://%s@%s:%d%s", p.cfg.User, p.cfg.Host, p.cfg.Port, path.Join(p.cfg.RemoteDir, name))
}

// Publish uploads localDir to RemoteDir/<base name of localDir>.
func (p *Publisher) Publish(ctx context.Context, localDir string) (*Result, error) {
	if p.cfg.Host == "" || p.cfg.User == "" || (p.cfg.Password == "" && p.cfg.KeyFile == "") {
		return nil, ErrNotConfigured
	}

	sshClient, err := p.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer sshClient.Close()

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		return nil, fmt.Errorf("sftp: new client: %w", err)
	}
	defer client.Close()

	name := filepath.Base(filepath.Clean(localDir))
	r, err := UploadDir(ctx, client, localDir, path.Join(p.cfg.RemoteDir, name))
	if err != nil {
		return r, err
	}
	r.Target = p.Target(name)
	log.Printf("Published %d files (%d bytes) to %s", r.Files, r.Bytes, r.Target)
	return r, nil
}

func (p *Publisher) dial(ctx context.Context) (*ssh.Client, error) {
	auth, err := p.authMethods()
	if err != nil {
		return nil, err
	}
	hostKey, err := p.hostKeyCallback()
	if err != nil {
		return nil, err
	}

	sshCfg := &ssh.ClientConfig{
		User:            p.cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         20 * time.Second,
	}
	addr := fmt.Sprintf("%s:%d", p.cfg.Host, p.cfg.Port)

	type dialRes struct {
		client *ssh.Client
		err    error
	}
	ch := make(chan dialRes, 1)
	go func() {
		c, err := ssh.Dial("tcp", addr, sshCfg)
		ch <- dialRes{client: c, err: err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.client != nil {
				r.client.Close()
			}
		}()
		return nil, fmt.Errorf("sftp: dial canceled: %w", ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("sftp: dial %s: %w", addr, r.err)
		}
		return r.client, nil
	}
}

func (p *Publisher) authMethods() ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod
	if p.cfg.KeyFile != "" {
		key, err := os.ReadFile(p.cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("sftp: reading key file: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("sftp: parsing key file: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if p.cfg.Password != "" {
		methods = append(methods, ssh.Password(p.cfg.Password))
	}
	return methods, nil
}

func (p *Publisher) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if p.cfg.InsecureIgnoreHostKey {
		log.Println("Warning: SFTP host key verification is disabled")
		return ssh.InsecureIgnoreHostKey(), nil
	}
	file := p.cfg.KnownHostsFile
	if file == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("sftp: locating known_hosts: %w", err)
		}
		file = filepath.Join(home, ".ssh", "known_hosts")
	}
	cb, err := knownhosts.New(file)
	if err != nil {
		return nil, fmt.Errorf("sftp: loading known_hosts: %w", err)
	}
	return cb, nil
}

// UploadDir copies every file under localDir into remoteDir, creating
// directories as needed and overwriting existing files.
func UploadDir(ctx context.Context, client *sftp.Client, localDir, remoteDir string) (*Result, error) {
	r := &Result{}
	if err := client.MkdirAll(remoteDir); err != nil {
		return r, fmt.Errorf("sftp: mkdir %s: %w", remoteDir, err)
	}

	err := filepath.WalkDir(localDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(localDir, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		remote := path.Join(remoteDir, filepath.ToSlash(rel))

		if d.IsDir() {
			if err := client.MkdirAll(remote); err != nil {
				return fmt.Errorf("sftp: mkdir %s: %w", remote, err)
			}
			return nil
		}

		n, err := uploadFile(client, p, remote)
		if err != nil {
			return err
		}
		r.Files++
		r.Bytes += n
		return nil
	})
	return r, err
}

func uploadFile(client *sftp.Client, localPath, remotePath string) (int64, error) {
	src, err := os.Open(localPath)
	if err != nil {
		return 0, fmt.Errorf("sftp: open local file: %w", err)
	}
	defer src.Close()

	dst, err := client.Create(remotePath)
	if err != nil {
		return 0, fmt.Errorf("sftp: create %s: %w", remotePath, err)
	}
	defer dst.Close()

	n, err := io.Copy(dst, src)
	if err != nil {
		return n, fmt.Errorf("sftp: upload %s: %w", remotePath, err)
	}
	return n, nil
}
