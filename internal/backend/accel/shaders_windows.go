//go:build windows

package accel

// workgroupSize is the number of threads per workgroup in every shader.
const workgroupSize = 256

// Buffers shared by the log-sum-exp shaders:
//
//	exps: [exp(x/γ) | exp(y/γ) | exp(−x/γ) | exp(−y/γ)], 4·#pins
//	sums: [Σexp(x/γ) | Σexp(y/γ) | Σexp(−x/γ) | Σexp(−y/γ)], 4·#nets
const lseParams = `
struct Params {
    num_pins: u32,
    num_nets: u32,
    gamma: f32,
    grad_out: f32,
}
`

// moveBoundaryShader clamps movable and filler objects into the region.
const moveBoundaryShader = `
@group(0) @binding(0) var<storage, read_write> pos: array<f32>;
@group(0) @binding(1) var<storage, read> size_x: array<f32>;
@group(0) @binding(2) var<storage, read> size_y: array<f32>;

struct Params {
    num_objects: u32,
    movable_end: u32,
    filler_start: u32,
    _pad: u32,
    xl: f32,
    yl: f32,
    xh: f32,
    yh: f32,
}
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let i = global_id.x;
    let n = params.num_objects;
    if (i >= n || (i >= params.movable_end && i < params.filler_start)) {
        return;
    }
    pos[i] = min(max(pos[i], params.xl), params.xh - size_x[i]);
    pos[n + i] = min(max(pos[n + i], params.yl), params.yh - size_y[i]);
}
`

// lseExpShader caches the four exponentials of every pin on an included net.
const lseExpShader = lseParams + `
@group(0) @binding(0) var<storage, read> pos: array<f32>;
@group(0) @binding(1) var<storage, read> pin2net: array<i32>;
@group(0) @binding(2) var<storage, read> mask: array<u32>;
@group(0) @binding(3) var<storage, read_write> exps: array<f32>;
@group(0) @binding(4) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let p = global_id.x;
    let np = params.num_pins;
    if (p >= np || mask[u32(pin2net[p])] == 0u) {
        return;
    }
    let x = pos[p];
    let y = pos[np + p];
    exps[p] = exp(x / params.gamma);
    exps[np + p] = exp(y / params.gamma);
    exps[2u * np + p] = exp(-x / params.gamma);
    exps[3u * np + p] = exp(-y / params.gamma);
}
`

// lseReduceShader sums cached exponentials per net over its CSR pin range and
// computes the net value.
const lseReduceShader = lseParams + `
@group(0) @binding(0) var<storage, read> flat_net_pin: array<i32>;
@group(0) @binding(1) var<storage, read> net_pin_start: array<i32>;
@group(0) @binding(2) var<storage, read> mask: array<u32>;
@group(0) @binding(3) var<storage, read> exps: array<f32>;
@group(0) @binding(4) var<storage, read_write> sums: array<f32>;
@group(0) @binding(5) var<storage, read_write> net_value: array<f32>;
@group(0) @binding(6) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let n = global_id.x;
    let np = params.num_pins;
    let nn = params.num_nets;
    if (n >= nn) {
        return;
    }
    if (mask[n] == 0u) {
        net_value[n] = 0.0;
        return;
    }
    var s = vec4<f32>(0.0);
    for (var k = net_pin_start[n]; k < net_pin_start[n + 1u]; k = k + 1) {
        let p = u32(flat_net_pin[k]);
        s = s + vec4<f32>(exps[p], exps[np + p], exps[2u * np + p], exps[3u * np + p]);
    }
    sums[n] = s.x;
    sums[nn + n] = s.y;
    sums[2u * nn + n] = s.z;
    sums[3u * nn + n] = s.w;
    net_value[n] = params.gamma * (log(s.x) + log(s.z) + log(s.y) + log(s.w));
}
`

// lseAtomicShader caches pin exponentials and accumulates them into the net
// sums with compare-and-swap float addition.
const lseAtomicShader = lseParams + `
@group(0) @binding(0) var<storage, read> pos: array<f32>;
@group(0) @binding(1) var<storage, read> pin2net: array<i32>;
@group(0) @binding(2) var<storage, read> mask: array<u32>;
@group(0) @binding(3) var<storage, read_write> exps: array<f32>;
@group(0) @binding(4) var<storage, read_write> sums: array<atomic<u32>>;
@group(0) @binding(5) var<uniform> params: Params;

fn atomic_add_f32(i: u32, v: f32) {
    var old = atomicLoad(&sums[i]);
    loop {
        let next = bitcast<u32>(bitcast<f32>(old) + v);
        let r = atomicCompareExchangeWeak(&sums[i], old, next);
        if (r.exchanged) {
            break;
        }
        old = r.old_value;
    }
}

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let p = global_id.x;
    let np = params.num_pins;
    let nn = params.num_nets;
    if (p >= np) {
        return;
    }
    let n = u32(pin2net[p]);
    if (mask[n] == 0u) {
        return;
    }
    let x = pos[p];
    let y = pos[np + p];
    let e = vec4<f32>(exp(x / params.gamma), exp(y / params.gamma), exp(-x / params.gamma), exp(-y / params.gamma));
    exps[p] = e.x;
    exps[np + p] = e.y;
    exps[2u * np + p] = e.z;
    exps[3u * np + p] = e.w;
    atomic_add_f32(n, e.x);
    atomic_add_f32(nn + n, e.y);
    atomic_add_f32(2u * nn + n, e.z);
    atomic_add_f32(3u * nn + n, e.w);
}
`

// lseFinishShader turns accumulated sums into net values.
const lseFinishShader = lseParams + `
@group(0) @binding(0) var<storage, read> mask: array<u32>;
@group(0) @binding(1) var<storage, read> sums: array<f32>;
@group(0) @binding(2) var<storage, read_write> net_value: array<f32>;
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let n = global_id.x;
    let nn = params.num_nets;
    if (n >= nn) {
        return;
    }
    if (mask[n] == 0u) {
        net_value[n] = 0.0;
        return;
    }
    net_value[n] = params.gamma * (log(sums[n]) + log(sums[2u * nn + n]) + log(sums[nn + n]) + log(sums[3u * nn + n]));
}
`

// lseGradShader writes the wirelength gradient of every pin.
const lseGradShader = lseParams + `
@group(0) @binding(0) var<storage, read> pin2net: array<i32>;
@group(0) @binding(1) var<storage, read> mask: array<u32>;
@group(0) @binding(2) var<storage, read> exps: array<f32>;
@group(0) @binding(3) var<storage, read> sums: array<f32>;
@group(0) @binding(4) var<storage, read_write> grad: array<f32>;
@group(0) @binding(5) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let p = global_id.x;
    let np = params.num_pins;
    let nn = params.num_nets;
    if (p >= np) {
        return;
    }
    let n = u32(pin2net[p]);
    if (mask[n] == 0u) {
        grad[p] = 0.0;
        grad[np + p] = 0.0;
        return;
    }
    grad[p] = params.grad_out * (exps[p] / sums[n] - exps[2u * np + p] / sums[2u * nn + n]);
    grad[np + p] = params.grad_out * (exps[np + p] / sums[nn + n] - exps[3u * np + p] / sums[3u * nn + n]);
}
`
