package assets

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/spaghettifunk/anima-texel/engine/assets/loaders"
	"github.com/spaghettifunk/anima-texel/engine/containers"
	"github.com/spaghettifunk/anima-texel/engine/core"
	"github.com/spaghettifunk/anima-texel/engine/systems"
)

var ErrAssetNotFound = errors.New("asset not found")

type AssetInfo struct {
	Name       string
	Path       string
	LastLoaded time.Time
}

// AssetManager indexes the image files under a directory, decodes them on
// demand and, when watching, decodes changed files in the background and
// queues them for the render thread.
type AssetManager struct {
	assets map[string]AssetInfo
	loader Loader
	params *loaders.ImageResourceParams

	mutex sync.RWMutex

	jobs     *systems.JobSystem
	reloads  *containers.RingQueue[*loaders.Image]
	done     chan struct{}
	fsnotify *fsnotify.Watcher
	isClosed bool
	wg       sync.WaitGroup
}

func NewAssetManager(params *loaders.ImageResourceParams, reloadQueueSize int) *AssetManager {
	return &AssetManager{
		assets:  make(map[string]AssetInfo),
		loader:  &loaders.ImageLoader{},
		params:  params,
		reloads: containers.NewRingQueue[*loaders.Image](reloadQueueSize),
		done:    make(chan struct{}),
	}
}

// Initialize indexes assetsDir. With watch set, file changes are decoded on
// jobs and handed out by PendingReloads.
func (am *AssetManager) Initialize(assetsDir string, watch bool, jobs *systems.JobSystem) error {
	am.jobs = jobs

	if !watch {
		return am.watchRecursive(assetsDir, false)
	}

	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "creating file watcher")
	}
	am.fsnotify = fsWatch

	am.wg.Add(1)
	go am.start()

	return am.addRecursive(assetsDir)
}

// AddRecursive starts watching the named directory and all sub-directories.
func (am *AssetManager) addRecursive(name string) error {
	if am.isClosed {
		return errors.New("rfsnotify instance already closed")
	}
	return am.watchRecursive(name, false)
}

// LoadImage decodes the image registered under name.
func (am *AssetManager) LoadImage(name string) (*loaders.Image, error) {
	am.mutex.Lock()
	asset, exists := am.assets[name]
	if exists {
		// Update the loaded time
		asset.LastLoaded = time.Now()
		am.assets[name] = asset
	}
	am.mutex.Unlock()

	if !exists {
		return nil, errors.Wrapf(ErrAssetNotFound, "texture '%s'", name)
	}
	img, err := am.loader.Load(asset.Path, am.params)
	if err != nil {
		return nil, err
	}
	img.Name = name
	return img, nil
}

// LoadAll decodes every indexed image in parallel. The result is sorted by
// name.
func (am *AssetManager) LoadAll(ctx context.Context) ([]*loaders.Image, error) {
	names := am.Names()
	images := make([]*loaders.Image, len(names))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, name := range names {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			img, err := am.LoadImage(name)
			if err != nil {
				return err
			}
			images[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return images, nil
}

// Names returns the sorted names of every indexed image.
func (am *AssetManager) Names() []string {
	am.mutex.RLock()
	defer am.mutex.RUnlock()

	names := make([]string, 0, len(am.assets))
	for name := range am.assets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PendingReloads returns the images decoded since the last call, keeping only
// the newest one per name.
func (am *AssetManager) PendingReloads() []*loaders.Image {
	pending := am.reloads.Drain()
	if len(pending) < 2 {
		return pending
	}
	latest := make(map[string]int, len(pending))
	out := pending[:0]
	for _, img := range pending {
		if i, ok := latest[img.Name]; ok {
			out[i] = img
			continue
		}
		latest[img.Name] = len(out)
		out = append(out, img)
	}
	return out
}

func (am *AssetManager) Shutdown() error {
	if am.isClosed {
		return nil
	}
	am.isClosed = true
	if am.fsnotify != nil {
		close(am.done)
		am.wg.Wait()
	}
	return nil
}

func (am *AssetManager) start() {
	defer am.wg.Done()
	for {
		select {

		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			s, err := os.Stat(e.Name)
			if err == nil && s != nil && s.IsDir() {
				if e.Op&fsnotify.Create != 0 {
					if err := am.watchRecursive(e.Name, false); err != nil {
						core.LogError(err.Error())
					}
				}
				continue
			}
			// Handle create or modify events
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				if name, ok := am.handleFileEvent(e.Name); ok {
					am.scheduleReload(name, e.Name)
				}
			}
			if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				am.removeAsset(e.Name)
			}

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError(err.Error())

		case <-am.done:
			am.fsnotify.Close()
			return
		}
	}
}

// scheduleReload decodes path off the watcher goroutine and queues the result.
func (am *AssetManager) scheduleReload(name, path string) {
	var img *loaders.Image
	job := systems.Job{
		Name: "reload " + name,
		Run: func() error {
			var err error
			img, err = am.loader.Load(path, am.params)
			return err
		},
		OnComplete: func() {
			img.Name = name
			if err := am.reloads.Enqueue(img); err != nil {
				core.LogWarn("dropping reload of '%s': %s", name, err)
			}
		},
	}

	if am.jobs == nil {
		am.runInline(job)
		return
	}
	if err := am.jobs.Submit(job); err != nil {
		core.LogWarn("%s", err)
	}
}

func (am *AssetManager) runInline(job systems.Job) {
	if err := job.Run(); err != nil {
		core.LogError("job '%s' failed: %s", job.Name, err)
		return
	}
	job.OnComplete()
}

// watchRecursive indexes every image under path and, when watching, adds all
// directories to the watch list.
// this is probably a very racey process. What if a file is added to a folder before we get the watch added?
func (am *AssetManager) watchRecursive(path string, unWatch bool) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			if am.fsnotify == nil {
				return nil
			}
			if unWatch {
				return am.fsnotify.Remove(walkPath)
			}
			return am.fsnotify.Add(walkPath)
		}
		am.handleFileEvent(walkPath)
		return nil
	})
}

// Handle the creation or modification of a file
func (am *AssetManager) handleFileEvent(path string) (string, bool) {
	if !loaders.IsImageFile(path) {
		return "", false
	}
	name := loaders.ImageName(path)

	am.mutex.Lock()
	defer am.mutex.Unlock()

	if prev, ok := am.assets[name]; ok && prev.Path != path {
		core.LogWarn("texture '%s' at %s shadows %s", name, path, prev.Path)
	}
	am.assets[name] = AssetInfo{
		Name: name,
		Path: path,
	}
	return name, true
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) removeAsset(path string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	name := loaders.ImageName(path)
	if asset, ok := am.assets[name]; ok && asset.Path == path {
		delete(am.assets, name)
	}
}
