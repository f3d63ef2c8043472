/*
Package mapping loads the LoD mapping file.

A mapping file lists one or more geometry batches. Each batch names a
footprint source, the attributes that hold the storey counts, the storey
height and the output directory for the extruded meshes.

	seed: 42
	geometry:
	  - name: gangnam
	    input: buildings.geojson
	    ground_storey: GRND_FLR
	    underground_storey: UGRND_FLR
	    storey_height: 3.0
	    offset: [302905.0, 4171084.25]
	    output: out/gangnam

JSON files with the same structure are accepted as well.
*/
package mapping
