/*
kaomask composites a live camera face onto a character illustration in real
time.  An external detector supplies normalized face landmarks for at most one
face per frame; kaomask maps the face region onto a declarative "slot" on the
character image using a 2D similarity transform (rotate, uniform scale,
translate), masks it with a soft-edged mask image and redraws the destination
surface every frame.

The root package holds the pure pipeline math: coordinate spaces, landmark
anchors, the slot specification, the similarity transform solver and the
canvas footprint check.  Raster work lives in the preprocess and render
subpackages, frame orchestration in the session subpackage.

See example usage in the cmd/kaomask command.
*/
package kaomask
