// Package encoder picks the video encoder the transcode pipeline uses.
//
// Detection walks hardware tiers in priority order (NVENC, then QSV, then
// VAAPI) and accepts a tier only when a real one-frame test encode through
// ffmpeg succeeds under a bounded timeout. Device nodes are checked first so
// hosts without the hardware skip the probe cost. When no tier works the
// software profile is selected; it is always available, so detection cannot
// strand the pipeline.
//
// The first result is cached for the life of the process. A configured
// override skips probing entirely and is reported with Detected=false.
package encoder
