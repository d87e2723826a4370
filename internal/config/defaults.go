package config

const (
	defaultContentDir         = "content"
	defaultMediaDir           = "media"
	defaultArticleMediaDir    = "content/media"
	defaultOutputDir          = "site"
	defaultTemplatesDir       = "web"
	defaultCacheDir           = ".cache"
	defaultDerivedDir         = "media/derived"
	defaultGallerySourceDir   = "media/gallery"
	defaultCollectionFilename = "collection.json"
	defaultSidecarExtension   = ".json"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultMaxPixels          = 128_000_000
	defaultWorkers            = 4
	defaultWatermarkOpacity   = 32
	defaultWatermarkColor     = "#FFFFFF"
	defaultWatermarkAngle     = 30.0
	defaultWatermarkSpacing   = 0.6
	defaultWatermarkScale     = 2
	defaultWatermarkMinSize   = 256
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		ProjectName: "Lantern Project",
		Paths: Paths{
			ContentDir:      defaultContentDir,
			MediaDir:        defaultMediaDir,
			ArticleMediaDir: defaultArticleMediaDir,
			OutputDir:       defaultOutputDir,
			TemplatesDir:    defaultTemplatesDir,
			CacheDir:        defaultCacheDir,
		},
		Media: Media{
			OutputDir: defaultDerivedDir,
			Profiles: []Profile{
				{Name: "thumb", Width: 320, Height: 320, Format: "webp", Quality: 75},
				{Name: "large", Width: 1920, Format: "jpg", Quality: 85},
			},
			Watermark: Watermark{
				Opacity:      defaultWatermarkOpacity,
				Color:        defaultWatermarkColor,
				Angle:        defaultWatermarkAngle,
				SpacingRatio: defaultWatermarkSpacing,
				Scale:        defaultWatermarkScale,
				MinSize:      defaultWatermarkMinSize,
			},
			MaxPixels: defaultMaxPixels,
			Workers:   defaultWorkers,
		},
		Gallery: Gallery{
			Enabled:            true,
			SourceDir:          defaultGallerySourceDir,
			CollectionFilename: defaultCollectionFilename,
			SidecarExtension:   defaultSidecarExtension,
			Cleanup:            true,
			ProfileMap: map[string]string{
				"thumbnail": "thumb",
				"web":       "large",
				"download":  "large",
			},
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
